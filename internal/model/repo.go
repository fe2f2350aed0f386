package model

// RepoMeta is a discovered repository descriptor. Fields mirror the GitHub
// REST API response; metadata is never mutated, only filtered and ranked.
// Timestamps stay as ISO-8601 strings because they are only ever compared
// lexicographically.
type RepoMeta struct {
	Name            string `json:"name"`
	FullName        string `json:"full_name"`
	Fork            bool   `json:"fork"`
	Size            int    `json:"size"` // KB
	StargazersCount int    `json:"stargazers_count"`
	ForksCount      int    `json:"forks_count"`
	WatchersCount   int    `json:"watchers_count"`
	OpenIssuesCount int    `json:"open_issues_count"`
	HasPages        bool   `json:"has_pages"`
	HasWiki         bool   `json:"has_wiki"`
	Archived        bool   `json:"archived"`
	Disabled        bool   `json:"disabled"`
	CreatedAt       string `json:"created_at"`
	PushedAt        string `json:"pushed_at"`
	UpdatedAt       string `json:"updated_at"`
	DefaultBranch   string `json:"default_branch"`
	Language        string `json:"language"`
	Description     string `json:"description"`
	Homepage        string `json:"homepage"`
}

// Branch returns the default branch, falling back to "main".
func (r *RepoMeta) Branch() string {
	if r.DefaultBranch == "" {
		return "main"
	}
	return r.DefaultBranch
}

// FetchMeta records how repository discovery went. Rate limiting is a flag
// here, not an error: collection stops early and the run continues.
type FetchMeta struct {
	PagesFetched int  `json:"pages_fetched"`
	RateLimited  bool `json:"rate_limited"`
}
