package marketplace_test

import (
	"fmt"
	"testing"
	"time"

	auth "github.com/workisready/marketplace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilePatchApply(t *testing.T) {
	base := auth.ProfileData{
		Name:     "Ama Mensah",
		Email:    "ama@example.com",
		Location: "Accra",
		Region:   "Greater Accra",
	}

	out := auth.ProfilePatch{
		Location: strPtr("Kumasi"),
		Phone:    strPtr("+233201234567"),
	}.Apply(base)

	assert.Equal(t, "Kumasi", out.Location)
	assert.Equal(t, "+233201234567", out.Phone)
	// Nil fields keep the published value.
	assert.Equal(t, "Ama Mensah", out.Name)
	assert.Equal(t, "Greater Accra", out.Region)

	// Explicit empty string clears a field, unlike a nil pointer.
	cleared := auth.ProfilePatch{Region: strPtr("")}.Apply(base)
	assert.Empty(t, cleared.Region)

	// The base is never mutated.
	assert.Equal(t, "Accra", base.Location)
}

func TestProviderPatchSampleWorkAppendsAndTruncates(t *testing.T) {
	base := auth.ProviderProfile{SampleWork: []string{"a.jpg", "b.jpg"}}

	out := auth.ProviderPatch{SampleWork: []string{"c.jpg"}}.Apply(base)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"}, out.SampleWork)

	// A nil slice leaves the existing set alone.
	untouched := auth.ProviderPatch{Bio: strPtr("hi")}.Apply(base)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, untouched.SampleWork)

	var many []string
	for i := 0; i < auth.MaxSampleWork+5; i++ {
		many = append(many, fmt.Sprintf("extra-%d.jpg", i))
	}
	capped := auth.ProviderPatch{SampleWork: many}.Apply(base)
	assert.Len(t, capped.SampleWork, auth.MaxSampleWork)
	// Existing entries stay at the head.
	assert.Equal(t, "a.jpg", capped.SampleWork[0])
}

func TestProviderProfileFullName(t *testing.T) {
	p := auth.ProviderProfile{FirstName: "Kofi", Surname: "Asante"}
	assert.Equal(t, "Kofi Asante", p.FullName())

	p.OtherName = "Kwame"
	assert.Equal(t, "Kofi Asante Kwame", p.FullName())
}

func TestUserStageAndResolve(t *testing.T) {
	user := &auth.User{Name: "Ama", Location: "Accra", IsApproved: true}
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	published := user.Published()
	proposed := auth.ProfilePatch{Location: strPtr("Tema")}.Apply(published)
	user.Stage(published, proposed, at)

	assert.True(t, user.HasPendingChanges)
	assert.Equal(t, "Accra", user.Location)
	require.NotNil(t, user.PendingSubmittedAt)
	assert.Equal(t, at, *user.PendingSubmittedAt)

	later := at.Add(time.Hour)
	user.Resolve(true, later)

	assert.Equal(t, "Tema", user.Location)
	assert.False(t, user.HasPendingChanges)
	assert.Nil(t, user.PendingProfile)
	assert.Nil(t, user.OriginalProfile)
	require.NotNil(t, user.LastApprovedAt)
	assert.Equal(t, later, *user.LastApprovedAt)
}

func TestUserResolveRejectDiscards(t *testing.T) {
	user := &auth.User{Location: "Accra", IsApproved: true}
	published := user.Published()
	user.Stage(published, auth.ProfilePatch{Location: strPtr("Tema")}.Apply(published), time.Now())

	user.Resolve(false, time.Now())

	assert.Equal(t, "Accra", user.Location)
	assert.False(t, user.HasPendingChanges)
	assert.Nil(t, user.LastApprovedAt)
}

func TestUserIsAdministrator(t *testing.T) {
	assert.True(t, (&auth.User{Role: auth.RoleAdmin}).IsAdministrator())
	assert.True(t, (&auth.User{Role: auth.RoleSuperadmin}).IsAdministrator())
	assert.True(t, (&auth.User{UserType: auth.TypeAdmin}).IsAdministrator())
	assert.False(t, (&auth.User{Role: auth.RoleUser, UserType: auth.TypeWorker}).IsAdministrator())
}

func TestUserSafeCopyStripsCredentials(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	user := &auth.User{
		Name:               "Ama",
		PasswordHash:       "bcrypt-hash",
		VerificationToken:  "vtoken",
		VerificationExpiry: &expiry,
		ResetToken:         "rtoken",
		ResetTokenExpiry:   &expiry,
	}

	out := user.SafeCopy()

	assert.Equal(t, "Ama", out.Name)
	assert.Empty(t, out.PasswordHash)
	assert.Empty(t, out.VerificationToken)
	assert.Nil(t, out.VerificationExpiry)
	assert.Empty(t, out.ResetToken)
	assert.Nil(t, out.ResetTokenExpiry)

	// The original keeps its secrets; SafeCopy is a copy.
	assert.Equal(t, "bcrypt-hash", user.PasswordHash)
}

func TestUserMarkEmailVerifiedIsTerminal(t *testing.T) {
	expiry := time.Now()
	user := &auth.User{VerificationToken: "tok", VerificationExpiry: &expiry}

	user.MarkEmailVerified()

	assert.True(t, user.IsEmailVerified)
	assert.Empty(t, user.VerificationToken)
	assert.Nil(t, user.VerificationExpiry)
}
