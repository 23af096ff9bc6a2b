package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/sakif/acme-skills/internal/apperror"
	"github.com/sakif/acme-skills/internal/auth"
	"github.com/sakif/acme-skills/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository interfaces. They mirror the
// constraint behaviour of the real stores (UNIQUE → Conflict, missing row →
// NotFound) so the services can be tested without a database.

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int

	createErr error
	getErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username {
			return apperror.ConflictMsg("username already exists")
		}
		if user.GitHubID != nil && u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			return apperror.ConflictMsg("github account is already linked to a user")
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	found := *u
	return &found, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.Username == username {
			found := *u
			return &found, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeUserRepo) GetByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			found := *u
			return &found, nil
		}
	}
	return nil, apperror.NotFound("user", fmt.Sprint(githubID))
}

func (f *fakeUserRepo) List(_ context.Context) ([]model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

type fakeSkillRepo struct {
	mu     sync.Mutex
	skills map[string]*model.Skill
	nextID int

	createErr error
	listErr   error
}

func newFakeSkillRepo(names ...string) *fakeSkillRepo {
	f := &fakeSkillRepo{skills: make(map[string]*model.Skill)}
	for _, name := range names {
		_ = f.Create(context.Background(), &model.Skill{Name: name})
	}
	return f
}

func (f *fakeSkillRepo) Create(_ context.Context, skill *model.Skill) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, s := range f.skills {
		if s.Name == skill.Name {
			return apperror.ConflictMsg("skill already exists")
		}
	}
	f.nextID++
	skill.ID = fmt.Sprintf("skill-%d", f.nextID)
	stored := *skill
	f.skills[skill.ID] = &stored
	return nil
}

func (f *fakeSkillRepo) GetByID(_ context.Context, id string) (*model.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.skills[id]
	if !ok {
		return nil, apperror.NotFound("skill", id)
	}
	found := *s
	return &found, nil
}

func (f *fakeSkillRepo) List(_ context.Context) ([]model.Skill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	skills := make([]model.Skill, 0, len(f.skills))
	for _, s := range f.skills {
		skills = append(skills, *s)
	}
	sort.Slice(skills, func(i, j int) bool { return skills[i].Name < skills[j].Name })
	return skills, nil
}

// idByName is a test convenience, not part of the repository interface.
func (f *fakeSkillRepo) idByName(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.skills {
		if s.Name == name {
			return s.ID
		}
	}
	return ""
}

type fakeFavoriteRepo struct {
	mu     sync.Mutex
	favs   []model.Favorite
	nextID int

	createErr error
	listErr   error
}

func newFakeFavoriteRepo() *fakeFavoriteRepo {
	return &fakeFavoriteRepo{}
}

func (f *fakeFavoriteRepo) Create(_ context.Context, fav *model.Favorite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.favs {
		if existing.UserID == fav.UserID && existing.SkillID == fav.SkillID {
			return apperror.ConflictMsg("skill is already a favorite")
		}
	}
	f.nextID++
	fav.ID = fmt.Sprintf("fav-%d", f.nextID)
	f.favs = append(f.favs, *fav)
	return nil
}

func (f *fakeFavoriteRepo) ListByUser(_ context.Context, userID string) ([]model.Favorite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var favs []model.Favorite
	for _, fav := range f.favs {
		if fav.UserID == userID {
			favs = append(favs, fav)
		}
	}
	return favs, nil
}

func (f *fakeFavoriteRepo) Delete(_ context.Context, userID, favoriteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.favs[:0]
	for _, fav := range f.favs {
		if fav.ID == favoriteID && fav.UserID == userID {
			continue
		}
		kept = append(kept, fav)
	}
	f.favs = kept
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

// seedSkills is a small catalog for provisioning tests.
var seedSkills = []string{"foo", "bar", "bazz", "quq", "fip"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", 0)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()
	return NewAuthService(repo, newTestTokens(t), auth.NewPasswordServiceForTest(), discardLogger())
}
