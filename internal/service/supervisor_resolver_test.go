package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

func testSupervisorDirectory() []models.User {
	return []models.User{
		{ID: "sup-math", FullName: "Dr. Rahman", Department: "Mathematics", Role: models.RoleSupervisor, Active: true},
		{ID: "sup-cs-1", FullName: "Dr. A", Department: "CS", Role: models.RoleSupervisor, Active: true},
		{ID: "sup-cs-2", FullName: "Dr. A", Department: "CS", Role: models.RoleSupervisor, Active: true},
	}
}

func ptr(s string) *string { return &s }

func TestResolveSupervisor(t *testing.T) {
	tests := []struct {
		name        string
		sub         models.ResourceSubmission
		supervisors []models.User
		want        *string
	}{
		{
			name:        "supervisor uploading final project supervises it",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, UploaderID: "sup-9", UploaderRole: models.RoleSupervisor, SupervisorID: ptr("sup-cs-1")},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-9"),
		},
		{
			name:        "explicit id kept without validation",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "CS", UploaderRole: models.RoleStudent, SupervisorID: ptr("unknown-id")},
			supervisors: testSupervisorDirectory(),
			want:        ptr("unknown-id"),
		},
		{
			name:        "name match uses earliest registered supervisor",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "Mathematics", UploaderRole: models.RoleStudent, SupervisorName: ptr("  Dr. A ")},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-cs-1"),
		},
		{
			name:        "name match is case sensitive and falls back to department",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "Mathematics", UploaderRole: models.RoleStudent, SupervisorName: ptr("dr. a")},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-math"),
		},
		{
			name:        "same department supervisor",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "CS", UploaderRole: models.RoleStudent},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-cs-1"),
		},
		{
			name:        "department match ignores case",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "mathematics", UploaderRole: models.RoleStudent},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-math"),
		},
		{
			name:        "any active supervisor when department has none",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "Biology", UploaderRole: models.RoleStudent},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-math"),
		},
		{
			name: "nil when no supervisors exist",
			sub:  models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "CS", UploaderRole: models.RoleStudent},
			want: nil,
		},
		{
			name:        "blank explicit id is ignored",
			sub:         models.ResourceSubmission{Type: models.ResourceTypeFinalProject, Department: "CS", UploaderRole: models.RoleStudent, SupervisorID: ptr("  ")},
			supervisors: testSupervisorDirectory(),
			want:        ptr("sup-cs-1"),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveSupervisor(tc.sub, tc.supervisors)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func TestNeedsSupervisor(t *testing.T) {
	assert.True(t, needsSupervisor(models.ResourceSubmission{Type: models.ResourceTypeFinalProject}))
	assert.False(t, needsSupervisor(models.ResourceSubmission{Type: models.ResourceTypeThesis}))
	assert.True(t, needsSupervisor(models.ResourceSubmission{Type: models.ResourceTypeThesis, SupervisorName: ptr("Dr. A")}))
	assert.False(t, needsSupervisor(models.ResourceSubmission{Type: models.ResourceTypeMiniProject, SupervisorID: ptr(" ")}))
}
