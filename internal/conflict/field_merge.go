// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package conflict

import "github.com/MKhiriev/go-sync-keeper/models"

// fieldMerge merges two copies section by section:
//   - a section present on one side only is kept;
//   - sensitive sections take the more restrictive privacy level, whatever
//     the customization flags say;
//   - otherwise the customized side wins;
//   - undecided sections follow last-write-wins.
//
// Entity-level fields (ManuallySet, Deleted) follow last-write-wins. A
// deletion on one side only is not merged: last-write-wins decides.
func fieldMerge(local, remote models.SyncableEntity) (models.SyncableEntity, Side) {
	lww := lastWriteWins(local, remote)
	if local.Deleted != remote.Deleted {
		return pick(lww, local, remote), lww
	}

	out := pick(lww, local, remote)
	out.Payload = models.Payload{Sections: make(map[string]models.Section)}

	fromLocal, fromRemote := false, false
	for _, name := range local.Payload.SectionNames(remote.Payload) {
		l, lok := local.Payload.Sections[name]
		r, rok := remote.Payload.Sections[name]

		var side Side
		switch {
		case !rok:
			side = SideLocal
		case !lok:
			side = SideRemote
		case l.Equal(r):
			side = lww
		case l.Sensitive || r.Sensitive:
			side = moreRestrictive(l, r, lww)
		case l.Customized && !r.Customized:
			side = SideLocal
		case r.Customized && !l.Customized:
			side = SideRemote
		default:
			side = lww
		}

		if side == SideLocal {
			out.Payload.Sections[name] = cloneSection(l)
			fromLocal = fromLocal || !l.Equal(r) || !rok
		} else {
			out.Payload.Sections[name] = cloneSection(r)
			fromRemote = fromRemote || !l.Equal(r) || !lok
		}
	}

	switch {
	case fromLocal && fromRemote:
		return out, SideMerged
	case fromRemote:
		return out, SideRemote
	case fromLocal:
		return out, SideLocal
	default:
		return out, lww
	}
}

// moreRestrictive returns the side with the higher privacy level; equal
// levels fall back to tie.
func moreRestrictive(l, r models.Section, tie Side) Side {
	switch {
	case l.Privacy > r.Privacy:
		return SideLocal
	case r.Privacy > l.Privacy:
		return SideRemote
	default:
		return tie
	}
}

func cloneSection(s models.Section) models.Section {
	if s.Data != nil {
		s.Data = append([]byte(nil), s.Data...)
	}
	return s
}
