package service

import (
	"strings"

	"github.com/noah-isme/academic-repo-api/internal/models"
)

// ResolveSupervisor picks the supervisor for a submission. supervisors must be
// the active supervisor directory ordered by registration; the first match in
// that order wins. The result is nil when nobody can be assigned.
//
// Order of precedence:
//  1. a supervisor uploading a final project supervises it
//  2. an explicit supervisor id is kept as given
//  3. an exact full-name match
//  4. the first supervisor of the same department, then the first overall
func ResolveSupervisor(sub models.ResourceSubmission, supervisors []models.User) *string {
	if sub.UploaderRole == models.RoleSupervisor && sub.Type == models.ResourceTypeFinalProject && sub.UploaderID != "" {
		id := sub.UploaderID
		return &id
	}

	if sub.SupervisorID != nil {
		if id := strings.TrimSpace(*sub.SupervisorID); id != "" {
			return &id
		}
	}

	if sub.SupervisorName != nil {
		if name := strings.TrimSpace(*sub.SupervisorName); name != "" {
			for _, sup := range supervisors {
				if strings.TrimSpace(sup.FullName) == name {
					id := sup.ID
					return &id
				}
			}
		}
	}

	department := strings.TrimSpace(sub.Department)
	if department != "" {
		for _, sup := range supervisors {
			if models.SameDepartment(sup.Department, department) {
				id := sup.ID
				return &id
			}
		}
	}

	if len(supervisors) > 0 {
		id := supervisors[0].ID
		return &id
	}
	return nil
}

// needsSupervisor reports whether resolution should run for the submission.
// Final projects always get a best-effort supervisor; other types only when
// the uploader named one.
func needsSupervisor(sub models.ResourceSubmission) bool {
	if sub.Type == models.ResourceTypeFinalProject {
		return true
	}
	hasID := sub.SupervisorID != nil && strings.TrimSpace(*sub.SupervisorID) != ""
	hasName := sub.SupervisorName != nil && strings.TrimSpace(*sub.SupervisorName) != ""
	return hasID || hasName
}
