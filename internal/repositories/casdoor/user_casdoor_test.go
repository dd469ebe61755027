package casdoor

import (
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func TestMapRole(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, MapRole("Administrator"))
	assert.Equal(t, models.RoleTeacher, MapRole(" instructor "))
	assert.Equal(t, models.RoleStudent, MapRole("learner"))
	assert.Equal(t, models.RoleStudent, MapRole(""))
}

func TestRoleOf(t *testing.T) {
	assert.Equal(t, models.RoleAdmin, RoleOf(&casdoorsdk.User{IsAdmin: true}))
	assert.Equal(t, models.RoleTeacher, RoleOf(&casdoorsdk.User{
		Roles: []*casdoorsdk.Role{{Name: "student"}, {Name: "teacher"}},
	}))
	assert.Equal(t, models.RoleTeacher, RoleOf(&casdoorsdk.User{Type: "teacher"}))
	assert.Equal(t, models.RoleStudent, RoleOf(&casdoorsdk.User{}))
}

func TestToUser(t *testing.T) {
	assert.Nil(t, ToUser(nil))

	u := ToUser(&casdoorsdk.User{
		Id:          "u-1",
		Name:        "alice",
		Email:       "alice@example.com",
		CreatedTime: "2025-01-02T03:04:05Z",
	})
	assert.Equal(t, "u-1", u.ID)
	assert.Equal(t, "alice", u.FullName)
	assert.Nil(t, u.AvatarURL)
	assert.Equal(t, 2025, u.CreatedAt.Year())
	assert.Equal(t, models.RoleStudent, u.Role)
}
