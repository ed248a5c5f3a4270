package dom

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree(t *testing.T) *Node {
	t.Helper()
	doc, err := ParseString(`<html><body>
<div id="main" class="page">
  <h1>Title</h1>
  <script>alert(1)</script>
  <p>Some <b>bold</b> text</p>
  <textarea id="notes">initial</textarea>
  <select id="pick"><option value="a">A</option><option value="b" selected>B</option></select>
  <canvas id="chart" width="4" height="3"></canvas>
</div>
</body></html>`)
	require.NoError(t, err)
	return FindByID(doc, "main")
}

// shape returns a structural fingerprint of a tree.
func shape(n *Node) []string {
	var out []string
	Walk(n, func(c *Node) bool {
		out = append(out, c.Kind.String()+":"+c.Tag)
		return true
	})
	return out
}

func withoutScripts(n *Node) []string {
	var out []string
	Walk(n, func(c *Node) bool {
		if c.IsElement("script") {
			return false
		}
		out = append(out, c.Kind.String()+":"+c.Tag)
		return true
	})
	return out
}

func TestSnapshot_IsomorphicWithoutScripts(t *testing.T) {
	src := sampleTree(t)

	replica := Snapshot(src, false)

	assert.Equal(t, withoutScripts(src), shape(replica))
	assert.Nil(t, FindTag(replica, "script"))
	assert.Nil(t, replica.Parent, "replica root must be detached")
}

func TestSnapshot_IncludeScripts(t *testing.T) {
	src := sampleTree(t)

	replica := Snapshot(src, true)

	assert.Equal(t, shape(src), shape(replica))
	require.NotNil(t, FindTag(replica, "script"))
}

func TestSnapshot_Nil(t *testing.T) {
	assert.Nil(t, Snapshot(nil, false))
}

func TestSnapshot_CopiesFieldValues(t *testing.T) {
	src := sampleTree(t)
	FindByID(src, "notes").Value = "typed by the user"
	FindByID(src, "pick").Value = "a"

	replica := Snapshot(src, false)

	assert.Equal(t, "typed by the user", FindByID(replica, "notes").Value)
	assert.Equal(t, "a", FindByID(replica, "pick").Value)
}

func TestSnapshot_RedrawsCanvasSurface(t *testing.T) {
	src := sampleTree(t)
	canvas := FindByID(src, "chart")
	canvas.Surface = image.NewRGBA(image.Rect(0, 0, 4, 3))
	red := color.RGBA{R: 255, A: 255}
	canvas.Surface.Set(2, 1, red)

	replica := Snapshot(src, false)
	copied := FindByID(replica, "chart")

	require.NotNil(t, copied.Surface)
	assert.Equal(t, image.Rect(0, 0, 4, 3), copied.Surface.Bounds())
	assert.Equal(t, red, copied.Surface.RGBAAt(2, 1))
	w, _ := copied.Get("width")
	h, _ := copied.Get("height")
	assert.Equal(t, "4", w)
	assert.Equal(t, "3", h)

	copied.Surface.Set(2, 1, color.RGBA{B: 255, A: 255})
	assert.Equal(t, red, canvas.Surface.RGBAAt(2, 1), "source surface must not change")
}

func TestSnapshot_BlankCanvasWithoutSurface(t *testing.T) {
	src := NewElement("canvas")

	replica := Snapshot(src, false)

	require.NotNil(t, replica.Surface)
	assert.Equal(t, image.Rect(0, 0, 300, 150), replica.Surface.Bounds())
}

func TestSnapshot_MutatingReplicaLeavesSourceAlone(t *testing.T) {
	src := sampleTree(t)
	before := shape(src)
	h1 := FindTag(src, "h1")

	replica := Snapshot(src, false)
	rh1 := FindTag(replica, "h1")
	rh1.Parent.InsertBefore(NewElement("div", Attribute{Key: "style", Val: "height: 50px"}), rh1)
	rh1.Set("class", "moved")
	replica.Children[0].Tag = "changed"

	assert.Equal(t, before, shape(src))
	_, ok := h1.Get("class")
	assert.False(t, ok)
}

func TestRestoreScroll_AppliesOnce(t *testing.T) {
	src := NewElement("div")
	inner := NewElement("div")
	src.AppendChild(inner)
	inner.ScrollTop, inner.ScrollLeft = 120, 8

	replica := Snapshot(src, false)
	rinner := replica.Children[0]
	assert.Zero(t, rinner.ScrollTop, "structural copy starts unscrolled")

	var calls []float64
	apply := func(n *Node, top, left float64) error {
		assert.Same(t, rinner, n)
		calls = append(calls, top, left)
		return nil
	}
	require.NoError(t, RestoreScroll(replica, apply))
	require.NoError(t, RestoreScroll(replica, apply))

	assert.Equal(t, []float64{120, 8}, calls)
	assert.Equal(t, 120.0, rinner.ScrollTop)
	assert.Equal(t, 8.0, rinner.ScrollLeft)
}
