package session

import (
	"github.com/kareemamged/rashadai-sub002/core/domain"
)

// mergeProfiles reconciles the two profile sources. The remote record is
// the starting point; a field absent remotely but cached locally takes
// the local value; a material disagreement prefers the local value and
// reports divergence so the caller can push the winner back to the
// remote store best-effort.
//
// Identity fields (ID, Email, CreatedAt) and account-state fields
// (Status, BlockExpiresAt, Deletion) always follow the remote record:
// the local cache is never a source of truth for moderation state.
func mergeProfiles(remote, local *domain.UserProfile) (*domain.UserProfile, bool) {
	if remote == nil && local == nil {
		return nil, false
	}
	if remote == nil {
		return local.Clone(), false
	}
	if local == nil {
		return remote.Clone(), false
	}

	merged := remote.Clone()
	divergent := false

	pick := func(dst **string, localVal *string) {
		switch {
		case localVal == nil:
		case *dst == nil:
			v := *localVal
			*dst = &v
		case **dst != *localVal:
			v := *localVal
			*dst = &v
			divergent = true
		}
	}

	pick(&merged.Name, local.Name)
	pick(&merged.Avatar, local.Avatar)
	pick(&merged.CountryCode, local.CountryCode)
	pick(&merged.Phone, local.Phone)
	pick(&merged.Bio, local.Bio)
	pick(&merged.Website, local.Website)
	pick(&merged.Gender, local.Gender)
	pick(&merged.Profession, local.Profession)

	if local.Language != "" {
		if merged.Language == "" {
			merged.Language = local.Language
		} else if merged.Language != local.Language {
			merged.Language = local.Language
			divergent = true
		}
	}

	if local.BirthDate != nil {
		if merged.BirthDate == nil {
			t := *local.BirthDate
			merged.BirthDate = &t
		} else if !merged.BirthDate.Equal(*local.BirthDate) {
			t := *local.BirthDate
			merged.BirthDate = &t
			divergent = true
		}
	}

	return merged, divergent
}
