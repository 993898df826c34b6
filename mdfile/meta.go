package mdfile

import "gopkg.in/yaml.v3"

// Metadata field names as reported to the field translator.
const (
	FieldTitle       = "title"
	FieldSidebarName = "menu.sidebar.name"
)

// Fields is the typed view of the metadata keys the translator knows about.
// A nil pointer means the key is absent (or not a scalar).
type Fields struct {
	Title             *string
	SidebarName       *string
	SidebarIdentifier *string
}

// FieldTranslator translates the text of one metadata field.
type FieldTranslator func(field, text string) string

// ExtractFields reads the known fields from a front matter mapping.
func ExtractFields(meta *yaml.Node) Fields {
	var f Fields
	if v := scalar(lookup(meta, "title")); v != nil {
		f.Title = &v.Value
	}
	sidebar := lookup(lookup(meta, "menu"), "sidebar")
	if v := scalar(lookup(sidebar, "name")); v != nil {
		f.SidebarName = &v.Value
	}
	if v := scalar(lookup(sidebar, "identifier")); v != nil {
		f.SidebarIdentifier = &v.Value
	}
	return f
}

// SelectMetadata builds the output front matter for a document.
//
// The output keeps title and menu (in that order) plus any key named in keep,
// copied untranslated in source order. Every other key is dropped. title and
// menu.sidebar.name are run through tr; menu.sidebar.identifier and all other
// nested menu keys pass through. Index documents always carry a title, empty
// when the source has none.
func SelectMetadata(meta *yaml.Node, kind Kind, keep []string, tr FieldTranslator) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	fields := ExtractFields(meta)

	if title := lookup(meta, "title"); title != nil {
		t := cloneNode(title)
		if fields.Title != nil {
			setString(t, tr(FieldTitle, *fields.Title))
		}
		appendPair(out, keyNode(meta, "title"), t)
	} else if kind == IndexDocument {
		appendPair(out, stringNode("title"), stringNode(""))
	}

	if menu := lookup(meta, "menu"); menu != nil {
		m := cloneNode(menu)
		if name := scalar(lookup(lookup(m, "sidebar"), "name")); name != nil && fields.SidebarName != nil {
			setString(name, tr(FieldSidebarName, *fields.SidebarName))
		}
		appendPair(out, keyNode(meta, "menu"), m)
	}

	if len(keep) > 0 && meta != nil {
		wanted := make(map[string]bool, len(keep))
		for _, k := range keep {
			wanted[k] = true
		}
		for i := 0; i+1 < len(meta.Content); i += 2 {
			k := meta.Content[i].Value
			if k == "title" || k == "menu" || !wanted[k] {
				continue
			}
			appendPair(out, cloneNode(meta.Content[i]), cloneNode(meta.Content[i+1]))
		}
	}

	return out
}

// StringAt follows a path of mapping keys and returns the scalar found there.
func StringAt(meta *yaml.Node, path ...string) (string, bool) {
	node := meta
	for _, key := range path {
		node = lookup(node, key)
	}
	if v := scalar(node); v != nil {
		return v.Value, true
	}
	return "", false
}

// Keys returns the top-level keys of a mapping node in order.
func Keys(meta *yaml.Node) []string {
	if meta == nil || meta.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(meta.Content)/2)
	for i := 0; i+1 < len(meta.Content); i += 2 {
		keys = append(keys, meta.Content[i].Value)
	}
	return keys
}

// ---------------------------------------------------------------------------
// yaml.Node helpers
// ---------------------------------------------------------------------------

// resolve follows alias nodes to the node they reference.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// lookup returns the value node for key in a mapping, or nil. Aliases are
// followed on both sides.
func lookup(node *yaml.Node, key string) *yaml.Node {
	node = resolve(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return resolve(node.Content[i+1])
		}
	}
	return nil
}

// keyNode returns a copy of the key node for key, keeping its comments.
func keyNode(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return cloneNode(node.Content[i])
		}
	}
	return stringNode(key)
}

func scalar(node *yaml.Node) *yaml.Node {
	node = resolve(node)
	if node == nil || node.Kind != yaml.ScalarNode {
		return nil
	}
	return node
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// setString replaces a scalar's value with a plain string, letting the
// encoder pick quoting.
func setString(node *yaml.Node, value string) {
	node.Value = value
	node.Tag = "!!str"
	node.Style = 0
}

func appendPair(m *yaml.Node, k, v *yaml.Node) {
	m.Content = append(m.Content, k, v)
}

// cloneNode deep-copies a node tree. Aliases are expanded into copies of
// their targets and anchors are dropped, so the copy stands on its own once
// the anchoring key is gone.
func cloneNode(n *yaml.Node) *yaml.Node {
	n = resolve(n)
	if n == nil {
		return nil
	}
	c := *n
	c.Anchor = ""
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}
