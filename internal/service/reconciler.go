package service

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/kasukras-star/apotikme-api/internal/models"
)

// ReconcileResult is the merged collection plus the remote copies that lost to a local decision.
type ReconcileResult struct {
	Requests  []models.ChangeRequest
	Conflicts []models.ConflictSkipped
}

// Reconcile merges the local and remote copies of one kind's collection.
//
// A remote copy that is a legal next step of the local one (approved to completed, for
// instance) is adopted. Otherwise a local request carrying a decision wins, and a decision
// made by another client replaces a local pending copy. Otherwise the local copy wins when it is still
// unacknowledged or newer than the remote one, and the remote copy wins in every other case
// where both exist. Requests present on only one side are kept. The result is ordered by
// creation time, then id.
func Reconcile(local, remote []models.ChangeRequest) ReconcileResult {
	remoteByID := make(map[string]models.ChangeRequest, len(remote))
	for _, r := range remote {
		remoteByID[r.ID] = r
	}

	var result ReconcileResult
	merged := make([]models.ChangeRequest, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local))

	for _, l := range local {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}

		r, onRemote := remoteByID[l.ID]
		switch {
		case onRemote && models.CanTransition(l.Status, r.Status):
			merged = append(merged, r.Clone())
		case l.Status.Decided():
			merged = append(merged, l.Clone())
			if onRemote && !sameRequest(l, r) {
				result.Conflicts = append(result.Conflicts, models.ConflictSkipped{
					Kind:         l.SubjectKind,
					RequestID:    l.ID,
					LocalStatus:  l.Status,
					RemoteStatus: r.Status,
				})
			}
		case onRemote && r.Status.Decided():
			merged = append(merged, r.Clone())
		case onRemote && (l.IsNew || l.CreatedAt.After(r.CreatedAt)):
			merged = append(merged, l.Clone())
		case onRemote:
			merged = append(merged, r.Clone())
		default:
			merged = append(merged, l.Clone())
		}
	}

	for _, r := range remote {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		merged = append(merged, r.Clone())
	}

	SortChangeRequests(merged)
	result.Requests = merged
	return result
}

// SortChangeRequests orders by creation time, then id.
func SortChangeRequests(requests []models.ChangeRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if !requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].CreatedAt.Before(requests[j].CreatedAt)
		}
		return requests[i].ID < requests[j].ID
	})
}

func sameRequest(a, b models.ChangeRequest) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(left, right)
}
