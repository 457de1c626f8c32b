package github

// FileContent represents a single file read from or written to a repository
type FileContent struct {
	Path      string `json:"path"`
	SHA       string `json:"sha"`
	Size      int    `json:"size"`
	Content   string `json:"content"`
	HTMLURL   string `json:"html_url,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
}

// FileChange describes a create-or-update commit for one file
type FileChange struct {
	Path        string
	Content     string
	Message     string
	Branch      string
	SHA         string // blob SHA of the version being replaced; empty creates
	AuthorName  string
	AuthorEmail string
}
