// Package research provides the search collaborators backing the
// research-synthesis and video-curation steps.
package research

// Result is one structured search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"` // name of the searcher that produced it
}

// QueryAngles returns the independent research queries fanned out for a topic.
// Each angle is handled by its own searcher call so one failing angle degrades
// to empty results instead of aborting the step.
func QueryAngles(topic string) []string {
	return []string{
		topic + " overview facts",
		topic + " latest developments",
		topic + " expert analysis",
		topic + " statistics data",
	}
}

// VideoQuery returns the search query used by video curation for a topic.
func VideoQuery(topic string) string {
	return topic + " video"
}
