package session

import (
	"testing"

	"github.com/kareemamged/rashadai-sub002/core/domain"
)

func strPtr(s string) *string { return &s }

func TestMergeProfiles(t *testing.T) {
	tests := []struct {
		name          string
		remote        *domain.UserProfile
		local         *domain.UserProfile
		wantBio       *string
		wantName      *string
		wantDivergent bool
	}{
		{
			name:    "remote only",
			remote:  &domain.UserProfile{ID: "u1", Bio: strPtr("remote bio")},
			local:   nil,
			wantBio: strPtr("remote bio"),
		},
		{
			name:    "local fills absent remote field",
			remote:  &domain.UserProfile{ID: "u1"},
			local:   &domain.UserProfile{ID: "u1", Bio: strPtr("X")},
			wantBio: strPtr("X"),
		},
		{
			name:          "local wins on disagreement",
			remote:        &domain.UserProfile{ID: "u1", Name: strPtr("Remote Name")},
			local:         &domain.UserProfile{ID: "u1", Name: strPtr("Local Name")},
			wantName:      strPtr("Local Name"),
			wantDivergent: true,
		},
		{
			name:     "agreement is not divergence",
			remote:   &domain.UserProfile{ID: "u1", Name: strPtr("Same")},
			local:    &domain.UserProfile{ID: "u1", Name: strPtr("Same")},
			wantName: strPtr("Same"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged, divergent := mergeProfiles(tt.remote, tt.local)
			if merged == nil {
				t.Fatal("merged profile is nil")
			}
			if divergent != tt.wantDivergent {
				t.Errorf("divergent = %v, want %v", divergent, tt.wantDivergent)
			}
			if tt.wantBio != nil {
				if merged.Bio == nil || *merged.Bio != *tt.wantBio {
					t.Errorf("Bio = %v, want %q", merged.Bio, *tt.wantBio)
				}
			}
			if tt.wantName != nil {
				if merged.Name == nil || *merged.Name != *tt.wantName {
					t.Errorf("Name = %v, want %q", merged.Name, *tt.wantName)
				}
			}
		})
	}
}

func TestMergeProfiles_RemoteOwnsAccountState(t *testing.T) {
	remote := &domain.UserProfile{ID: "u1", Status: domain.StatusBlocked}
	local := &domain.UserProfile{ID: "u1", Status: domain.StatusActive, Bio: strPtr("X")}

	merged, _ := mergeProfiles(remote, local)
	if merged.Status != domain.StatusBlocked {
		t.Errorf("Status = %q, local cache must never override moderation state", merged.Status)
	}
}

func TestMergeProfiles_BothNil(t *testing.T) {
	merged, divergent := mergeProfiles(nil, nil)
	if merged != nil || divergent {
		t.Errorf("mergeProfiles(nil, nil) = %v, %v; want nil, false", merged, divergent)
	}
}
