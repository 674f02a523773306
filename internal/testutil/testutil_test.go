package testutil

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/semlog/internal/world"
)

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `","path":"` + r.URL.Path + `"}`))
	})

	rec := Serve(h, http.MethodPost, "/api/episodes?kind=Grasp")
	assert.True(t, AssertStatus(t, rec, http.StatusOK))
	var got struct{ Method, Path string }
	DecodeJSON(t, rec, &got)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "/api/episodes", got.Path)
}

type recordingTB struct {
	testing.TB
	errs []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Errorf(format string, args ...any) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

func TestAssertStatus_Mismatch(t *testing.T) {
	rec := Serve(http.NotFoundHandler(), http.MethodGet, "/missing")
	tb := &recordingTB{}
	assert.False(t, AssertStatus(tb, rec, http.StatusOK))
	require.Len(t, tb.errs, 1)
	assert.Contains(t, tb.errs[0], "status = 404, want 200")
	assert.Contains(t, tb.errs[0], "404 page not found")
}

// --- scene fixtures ---

func TestScene_ActorIsAnnotated(t *testing.T) {
	s := NewScene(t)
	a := s.Actor("bowl", 7, r3.Vec{X: 1}, true)

	e := s.Entity(a)
	if assert.NotNil(t, e) {
		assert.Equal(t, uint64(7), e.ID)
		assert.Equal(t, "bowl", e.Class)
	}
	s.At(2)
	assert.Equal(t, 2.0, s.World.Now())
}

func TestNewKitchen(t *testing.T) {
	k := NewKitchen(t)

	assert.True(t, k.Hand.IsSkeletal())
	assert.False(t, k.Table.Movable)
	assert.Equal(t, world.KindSphere, k.Reach.Geometry.Kind)
	assert.True(t, k.CupBox.Geometry.IsContactVolume())
	assert.Same(t, k.Cup, k.World.Actor("cup"))
	for _, a := range []*world.Actor{k.Hand, k.Cup, k.Table} {
		assert.NotNil(t, k.Entity(a), a.Name)
	}
}
