package engine

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"deskseed/internal/desk"
	"deskseed/internal/domain"
)

// AuthenticateAll logs every actor in, one after the other, in registry
// order. A failed login clears the actor's token and identity and the loop
// carries on. It returns the number of usable actors and fails only when
// none is usable.
func (e Engine) AuthenticateAll(ctx context.Context) (int, error) {
	l := e.phase("auth")
	l.WithField("actors", e.Registry.Len()).Info("phase start")
	for i, a := range e.Registry.All() {
		if i > 0 {
			if err := pause(ctx, e.Pauses.Login); err != nil {
				return 0, err
			}
		}
		e.login(ctx, a, l)
	}
	e.reconcileDirectory(ctx, l)

	usable := e.Registry.UsableCount()
	if e.Report != nil {
		e.Report.TotalActors = e.Registry.Len()
		e.Report.UsableActors = usable
	}
	l.WithFields(log.Fields{"usable": usable, "actors": e.Registry.Len()}).Info("phase done")
	if usable == 0 {
		return 0, fatalf(nil, "no actor could authenticate")
	}
	return usable, nil
}

// login authenticates one actor in place.
func (e Engine) login(ctx context.Context, a *domain.Actor, l log.FieldLogger) bool {
	al := l.WithField("actor", a.Username)
	var res desk.LoginResult
	err := e.call(ctx, desk.OpLogin, a, "", func(ctx context.Context) error {
		var err error
		res, err = e.Desk.Login(ctx, a.Username, a.Password)
		return err
	})
	if err != nil {
		a.Clear()
		al.WithError(err).Warn("login failed")
		e.Report.fail(err)
		return false
	}
	a.Token = res.Token
	a.RemoteID = res.ID
	if res.Name != "" {
		a.Name = res.Name
	}
	if res.Role != "" && !strings.EqualFold(res.Role, string(a.Role)) {
		al.WithField("remote_role", res.Role).Warn("configured role differs from session role")
	}
	if a.RemoteID == "" {
		al.Warn("login returned no identity")
	} else {
		al.WithField("id", a.RemoteID).Debug("authenticated")
	}
	return true
}

// reconcileDirectory fills identities the login left empty from the user
// directory, matching directory emails to usernames. Failures are logged.
func (e Engine) reconcileDirectory(ctx context.Context, l log.FieldLogger) {
	admin := e.tokenHolder(domain.RoleAdministrator)
	if admin == nil {
		l.Warn("no administrator session; directory not reconciled")
		return
	}
	users, err := e.directory(ctx, admin)
	if err != nil {
		l.WithError(err).Warn("directory unavailable")
		return
	}
	byEmail := make(map[string]domain.DirectoryUser, len(users))
	for _, u := range users {
		byEmail[strings.ToLower(u.Email)] = u
	}
	for _, a := range e.Registry.All() {
		if a.Token == "" {
			continue
		}
		u, ok := byEmail[strings.ToLower(a.Username)]
		if !ok {
			l.WithField("actor", a.Username).Warn("actor not found in directory")
			continue
		}
		al := l.WithFields(log.Fields{"actor": a.Username, "id": u.ID})
		switch {
		case a.RemoteID == "":
			a.RemoteID = u.ID
			al.Debug("identity taken from directory")
		case a.RemoteID != u.ID:
			al.WithField("session_id", a.RemoteID).Warn("directory id differs from session id")
		}
		if a.Name == "" {
			a.Name = u.Name
		}
		if u.Role != "" && u.Role != a.Role {
			al.WithField("remote_role", u.Role).Info("directory role differs from configured role")
		}
	}
}

// PromoteAnalysts gives the Analyst role to usable actors configured as
// analysts whose directory role differs. It returns how many were promoted.
func (e Engine) PromoteAnalysts(ctx context.Context) int {
	l := e.phase("promote")
	admin, ok := e.Registry.FirstUsable(domain.RoleAdministrator)
	if !ok {
		l.Warn("no usable administrator; analysts not promoted")
		return 0
	}
	users, err := e.directory(ctx, admin)
	if err != nil {
		l.WithError(err).Warn("directory unavailable; analysts not promoted")
		return 0
	}
	roles := make(map[domain.ID]domain.Role, len(users))
	for _, u := range users {
		roles[u.ID] = u.Role
	}
	promoted := 0
	for _, a := range e.Registry.Usable(domain.RoleAnalyst) {
		current, known := roles[a.RemoteID]
		if known && current == domain.RoleAnalyst {
			continue
		}
		al := l.WithFields(log.Fields{"actor": a.Username, "remote_role": current})
		err := e.call(ctx, desk.OpSetRole, admin, "", func(ctx context.Context) error {
			return e.Desk.SetRole(ctx, admin.Token, a.RemoteID, domain.RoleAnalyst)
		})
		if err != nil {
			al.WithError(err).Warn("promotion failed")
			e.Report.fail(err)
			continue
		}
		al.Info("promoted to analyst")
		promoted++
	}
	if e.Report != nil {
		e.Report.Promoted += promoted
	}
	return promoted
}

func (e Engine) directory(ctx context.Context, admin *domain.Actor) ([]domain.DirectoryUser, error) {
	var users []domain.DirectoryUser
	err := e.call(ctx, desk.OpDirectory, admin, "", func(ctx context.Context) error {
		var err error
		users, err = e.Desk.Users(ctx, admin.Token)
		return err
	})
	return users, err
}

// tokenHolder returns the first actor with role holding a session token,
// identity or not.
func (e Engine) tokenHolder(role domain.Role) *domain.Actor {
	for _, a := range e.Registry.ByRole(role) {
		if a.Token != "" {
			return a
		}
	}
	return nil
}
