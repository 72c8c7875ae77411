package graph

// Report describes what Sanitize removed from a result set.
type Report struct {
	Nodes         int `json:"nodes"`
	Links         int `json:"links"`
	DroppedNodes  int `json:"droppedNodes"`
	DanglingLinks int `json:"danglingLinks"`
}

// Dropped returns the total number of discarded elements.
func (r Report) Dropped() int {
	return r.DroppedNodes + r.DanglingLinks
}

// Sanitize returns a copy of data that is safe to simulate: nodes with an
// empty or repeated id are dropped (first occurrence wins) and links whose
// endpoints are not in the node set are dropped. The input is not modified.
func Sanitize(data GraphData) (GraphData, Report) {
	var report Report

	seen := make(map[string]bool, len(data.Nodes))
	nodes := make([]GraphNode, 0, len(data.Nodes))
	for _, n := range data.Nodes {
		if n.ID == "" || seen[n.ID] {
			report.DroppedNodes++
			continue
		}
		seen[n.ID] = true
		nodes = append(nodes, n)
	}

	links := make([]GraphLink, 0, len(data.Links))
	for _, l := range data.Links {
		if !seen[l.Source] || !seen[l.Target] {
			report.DanglingLinks++
			continue
		}
		links = append(links, l)
	}

	report.Nodes = len(nodes)
	report.Links = len(links)
	return GraphData{Nodes: nodes, Links: links}, report
}
