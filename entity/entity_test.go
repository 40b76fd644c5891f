package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_Accessors(t *testing.T) {
	root := New("get_status_response", "")
	assert.Nil(t, root.Attributes(), "no attribute map before the first attribute")
	assert.Empty(t, root.Children())

	root.SetAttribute("status", "200")
	root.SetAttribute("status_text", "OK")
	root.SetAttribute("status", "201")

	task1 := root.AddChild("task", "")
	task1.SetAttribute("id", "t1")
	task2 := root.AddChild("task", "")
	task2.SetAttribute("id", "t2")
	task1.AddChild("status", "Running")

	v, ok := root.Attribute("status")
	require.True(t, ok)
	assert.Equal(t, "201", v, "last write wins")

	_, ok = root.Attribute("missing")
	assert.False(t, ok)

	assert.Same(t, task1, root.Child("task"), "first match in document order")
	assert.Nil(t, root.Child("Task"), "lookup is case-sensitive")
	assert.Nil(t, root.Child("report"))

	text, ok := task1.ChildText("status")
	require.True(t, ok)
	assert.Equal(t, "Running", text)

	assert.Equal(t, []string{"status", "status_text"}, root.AttributeNames())
	assert.Len(t, root.Children(), 2)
}

func TestEntity_AttributesIsACopy(t *testing.T) {
	e := New("a", "")
	e.SetAttribute("x", "1")
	m := e.Attributes()
	m["x"] = "2"
	v, _ := e.Attribute("x")
	assert.Equal(t, "1", v)
}

func TestEqual(t *testing.T) {
	build := func() *Entity {
		e := New("a", "hi")
		e.SetAttribute("x", "1")
		e.SetAttribute("y", "2")
		b := e.AddChild("b", "there")
		b.SetAttribute("z", "3")
		e.AddChild("c", "")
		return e
	}

	tests := []struct {
		name   string
		mutate func(*Entity) *Entity
		equal  bool
	}{
		{"identical", func(e *Entity) *Entity { return e }, true},
		{"different name", func(e *Entity) *Entity { e.name = "A"; return e }, false},
		{"different text", func(e *Entity) *Entity { e.appendText("!"); return e }, false},
		{"different attribute value", func(e *Entity) *Entity { e.SetAttribute("x", "9"); return e }, false},
		{"extra attribute", func(e *Entity) *Entity { e.SetAttribute("w", "0"); return e }, false},
		{"extra child", func(e *Entity) *Entity { e.AddChild("d", ""); return e }, false},
		{"deep difference", func(e *Entity) *Entity { e.Child("b").SetAttribute("z", "4"); return e }, false},
		{"children swapped", func(e *Entity) *Entity {
			e.children[0], e.children[1] = e.children[1], e.children[0]
			return e
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, Equal(build(), tt.mutate(build())))
		})
	}
}

func TestEqual_AttributeOrderIrrelevant(t *testing.T) {
	a := New("a", "")
	a.SetAttribute("x", "1")
	a.SetAttribute("y", "2")
	b := New("a", "")
	b.SetAttribute("y", "2")
	b.SetAttribute("x", "1")
	assert.True(t, Equal(a, b))
}

func TestEqual_BareNodes(t *testing.T) {
	assert.True(t, Equal(New("a", "t"), New("a", "t")))
	assert.False(t, Equal(New("a", "t"), New("b", "t")), "names still compared without attributes")
	assert.False(t, Equal(New("a", "t"), New("a", "u")))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(New("a", ""), nil))
}

func TestEqual_EmptyMapMatchesNoMap(t *testing.T) {
	a := New("a", "")
	a.attributes = map[string]string{}
	assert.True(t, Equal(a, New("a", "")))
}

func TestEntity_String(t *testing.T) {
	e := New("create_target", "")
	e.AddChild("name", "lan & dmz")
	hosts := e.AddChild("hosts", "10.0.0.1")
	hosts.SetAttribute("type", `"ip"`)
	e.SetAttribute("b", "2")
	e.SetAttribute("a", "<1>")

	want := `<create_target a="&lt;1&gt;" b="2">` +
		`<name>lan &amp; dmz</name>` +
		`<hosts type="&#34;ip&#34;">10.0.0.1</hosts>` +
		`</create_target>`
	assert.Equal(t, want, e.String())
}

func TestRoundTrip(t *testing.T) {
	trees := map[string]func() *Entity{
		"single": func() *Entity { return New("a", "") },
		"text with markup characters": func() *Entity {
			return New("a", "1 < 2 && 3 > 2 \"quoted\" 'single'\n\ttabbed\r\n")
		},
		"nested with attributes": func() *Entity {
			e := New("get_status_response", "")
			e.SetAttribute("status", "200")
			e.SetAttribute("status_text", "OK & fine")
			for _, id := range []string{"t1", "t2"} {
				task := e.AddChild("task", "")
				task.SetAttribute("id", id)
				task.AddChild("name", "scan "+id)
				task.AddChild("status", "Running")
				task.AddChild("rcfile", "")
			}
			return e
		},
		"unicode": func() *Entity {
			e := New("päckchen", "grüße 🙂")
			e.SetAttribute("ключ", "значение")
			return e
		},
	}

	for name, build := range trees {
		t.Run(name, func(t *testing.T) {
			orig := build()
			b := NewBuilder()
			data := []byte(orig.String())
			n, err := b.Feed(data)
			require.NoError(t, err)
			require.Equal(t, len(data), n)
			require.True(t, b.Done())
			assert.True(t, Equal(orig, b.Root()), "reparsed: %s", b.Root())
		})
	}
}
