package timeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/semlog/internal/events"
)

func episode() []events.Event {
	hand := events.Participant{Role: events.RolePerformedBy, Name: "hand"}
	cup := events.Participant{Role: events.RoleObjectActedOn, Name: "cup"}
	table := events.Participant{Role: events.RoleInContact, Name: "table"}
	return []events.Event{
		{Kind: events.KindGrasp, Start: 2.5, End: 3, Participants: []events.Participant{hand, cup}},
		{Kind: events.KindContact, Start: 0, End: 3, Participants: []events.Participant{cup, table}},
		{Kind: events.KindReach, Start: 1, End: 2, Participants: []events.Participant{hand, cup}},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(episode())
	assert.Equal(t, []Row{
		{Label: "Contact cup/table", Kind: events.KindContact, Start: 0, End: 3},
		{Label: "Reach hand/cup", Kind: events.KindReach, Start: 1, End: 2},
		{Label: "Grasp hand/cup", Kind: events.KindGrasp, Start: 2.5, End: 3},
	}, rows)

	assert.Equal(t, "Slide", Rows([]events.Event{{Kind: events.KindSlide}})[0].Label)
}

func TestRows_DoesNotReorderInput(t *testing.T) {
	evs := episode()
	Rows(evs)
	assert.Equal(t, events.KindGrasp, evs[0].Kind)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "episode ep1", episode()))
	html := buf.String()

	assert.Contains(t, html, "episode ep1")
	assert.Contains(t, html, "Reach hand/cup")
	assert.Contains(t, html, "transparent")
	assert.Contains(t, html, "events=3")
}

func TestRenderHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "empty", nil))
	assert.Contains(t, buf.String(), "events=0")
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ep1.png")
	require.NoError(t, SavePNG(path, "episode ep1", episode()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), data[:8])
}

func TestSavePNG_BadDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "ep1.png")
	assert.Error(t, SavePNG(path, "x", episode()))
}
