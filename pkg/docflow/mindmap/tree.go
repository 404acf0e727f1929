package mindmap

import "github.com/randalmurphal/docflow/pkg/docflow"

// BuildTree normalizes a decoded model reply. The root is taken from
// central_node, root or nodes, then from data itself when it has a label.
func BuildTree(data map[string]any, mode string, sourceCount int) docflow.MindMapTree {
	title := stringOr(data["title"], "Mind Map")
	summary := stringOr(data["summary"], "")

	var root any
	for _, key := range []string{"central_node", "root", "nodes"} {
		if v, ok := data[key]; ok && !empty(v) {
			root = v
			break
		}
	}
	if root == nil {
		if _, ok := data["label"]; ok {
			root = data
		} else {
			root = map[string]any{"label": title}
		}
	}

	return docflow.MindMapTree{
		Title:       title,
		Summary:     summary,
		Mode:        mode,
		SourceCount: sourceCount,
		Nodes:       parseNode(root),
	}
}

func parseNode(v any) docflow.MindMapNode {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return docflow.MindMapNode{Label: "Unknown"}
	}

	label := "Node"
	for _, key := range []string{"label", "name", "text"} {
		if l, ok := m[key]; ok {
			label = stringOr(l, label)
			break
		}
	}

	node := docflow.MindMapNode{Label: label}
	children, _ := m["children"].([]any)
	for _, c := range children {
		if _, ok := c.(map[string]any); ok {
			node.Children = append(node.Children, parseNode(c))
		}
	}
	return node
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fallback
}

// empty mirrors truthiness of decoded JSON: nil, "", empty objects and arrays.
func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
