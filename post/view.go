package post

// View is the read-only projection of a Post used for rendering.
type View struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Content        string         `json:"content"`
	Reward         int64          `json:"reward"`
	ViewerVote     int8           `json:"viewer_vote"`
	ParentID       string         `json:"parent_id"`
	ChildrenRights ChildrenRights `json:"children_rights"`
	OwnerHash      string         `json:"owner_hash"`
	URL            string         `json:"url"`
	IsRoot         bool           `json:"is_root"`

	// Children is the number of live children. Listings leave it at zero.
	Children int `json:"children"`
}

// ToView projects p for a viewer account root, which may be nil.
func (p Post) ToView(viewer *Post) View {
	var vote int8
	if viewer != nil {
		vote = viewer.Votes[p.ID]
	}
	return View{
		ID:             p.ID,
		Title:          p.Title(),
		Content:        p.Content,
		Reward:         p.Reward,
		ViewerVote:     vote,
		ParentID:       p.ParentID,
		ChildrenRights: p.ChildrenRights,
		OwnerHash:      p.AccessHash,
		URL:            p.URL,
		IsRoot:         p.IsRoot(),
	}
}
