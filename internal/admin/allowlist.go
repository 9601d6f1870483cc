// Package admin gates privileged bot operations.
package admin

// AllowList is the fixed set of administrator Telegram IDs. The zero value denies everyone.
type AllowList struct {
	ids map[int64]struct{}
}

// NewAllowList builds the set once at startup.
func NewAllowList(ids []int64) AllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return AllowList{ids: set}
}

// Contains reports whether userID is an administrator.
func (a AllowList) Contains(userID int64) bool {
	_, ok := a.ids[userID]
	return ok
}

// IDs returns the administrators in no particular order.
func (a AllowList) IDs() []int64 {
	ids := make([]int64, 0, len(a.ids))
	for id := range a.ids {
		ids = append(ids, id)
	}
	return ids
}

func (a AllowList) Len() int {
	return len(a.ids)
}
