package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ----------------------------
// Pages
// ----------------------------

func (a *App) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sort := SortNewest
	if r.URL.Query().Get("sort") == string(SortMostLiked) {
		sort = SortMostLiked
	}

	msgs, err := a.Store.ListMessages(ctx, sort)
	if err != nil {
		a.serverError(w, err, "Could not list messages")
		return
	}

	top, err := a.Store.TopUsers(ctx, 5)
	if err != nil {
		a.serverError(w, err, "Could not list top users")
		return
	}

	liked := map[int64]bool{}
	if s, ok := SessionFrom(ctx); ok {
		liked, err = a.Store.LikedBy(ctx, s.UserID)
		if err != nil {
			a.serverError(w, err, "Could not list likes")
			return
		}
	}

	a.render(w, r, "index", map[string]any{
		"Title":    "Messages",
		"Messages": msgs,
		"TopUsers": top,
		"Liked":    liked,
		"Sort":     string(sort),
	})
}

func (a *App) showThread(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	th, err := a.Store.Thread(ctx, id)
	if errors.Is(err, ErrNotFound) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err != nil {
		a.serverError(w, err, "Could not load thread")
		return
	}

	liked := map[int64]bool{}
	if s, ok := SessionFrom(ctx); ok {
		liked, err = a.Store.LikedBy(ctx, s.UserID)
		if err != nil {
			a.serverError(w, err, "Could not list likes")
			return
		}
	}

	a.render(w, r, "show", map[string]any{
		"Title":   "Thread",
		"Message": th.Message,
		"Replies": th.Replies,
		"Liked":   liked,
	})
}

// ----------------------------
// Accounts
// ----------------------------

type registerForm struct {
	Name     string `validate:"required"`
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type loginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

func (a *App) registerPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "register", map[string]any{"Title": "Register"})
}

func (a *App) register(w http.ResponseWriter, r *http.Request) {
	form := registerForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(strings.ToLower(r.FormValue("email"))),
		Password: r.FormValue("password"),
	}
	if errs := a.Val.ValidateStruct(form); len(errs) > 0 {
		a.flashRedirect(w, r, errs[0].Notice(), "/register")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		a.serverError(w, err, "Could not create account")
		return
	}

	_, err = a.Store.CreateUser(r.Context(), form.Name, form.Email, string(hash))
	switch {
	case errors.Is(err, ErrDuplicateName):
		a.flashRedirect(w, r, "that name is already taken", "/register")
	case errors.Is(err, ErrDuplicateEmail):
		a.flashRedirect(w, r, "that email address is already taken", "/register")
	case err != nil:
		a.Logger.Error("Could not create user", "error", err.Error())
		a.flashRedirect(w, r, "could not create the account", "/register")
	default:
		a.flashRedirect(w, r, "account created, please log in", "/login")
	}
}

func (a *App) loginPage(w http.ResponseWriter, r *http.Request) {
	a.render(w, r, "login", map[string]any{"Title": "Log in"})
}

func (a *App) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	form := loginForm{
		Email:    strings.TrimSpace(strings.ToLower(r.FormValue("email"))),
		Password: r.FormValue("password"),
	}
	if errs := a.Val.ValidateStruct(form); len(errs) > 0 {
		a.flashRedirect(w, r, errs[0].Notice(), "/login")
		return
	}

	u, err := a.Store.UserByEmail(ctx, form.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		a.serverError(w, err, "Could not log in")
		return
	}
	// One generic notice for unknown email and wrong password alike.
	if errors.Is(err, ErrNotFound) ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(form.Password)) != nil {
		a.flashRedirect(w, r, "authentication failed", "/login")
		return
	}

	// A fresh login replaces any previous sessions for the user.
	if err := a.Sessions.DeleteUser(ctx, u.ID); err != nil {
		a.Logger.Error("Could not drop old sessions", "error", err.Error())
	}
	s, err := a.Sessions.Create(ctx, u.ID)
	if err != nil {
		a.serverError(w, err, "Could not log in")
		return
	}
	a.setSessionCookie(w, s)
	a.flashRedirect(w, r, fmt.Sprintf("welcome, %s!", u.Name), "/")
}

func (a *App) logout(w http.ResponseWriter, r *http.Request) {
	s, ok := SessionFrom(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := a.Sessions.Delete(r.Context(), s.ID); err != nil {
		a.Logger.Error("Could not delete session", "error", err.Error())
	}
	a.clearSessionCookie(w)
	a.flashRedirect(w, r, "logged out", "/")
}

func (a *App) unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	s, ok := SessionFrom(ctx)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	if err := a.Store.DeleteUser(ctx, s.UserID); err != nil {
		a.serverError(w, err, "Could not delete account")
		return
	}
	if err := a.Sessions.DeleteUser(ctx, s.UserID); err != nil {
		a.Logger.Error("Could not delete sessions", "error", err.Error())
	}
	a.clearSessionCookie(w)
	a.flashRedirect(w, r, "account deleted", "/")
}

// ----------------------------
// Messages
// ----------------------------

type postForm struct {
	Content string `validate:"required"`
}

func (a *App) createMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireUser(w, r)
	if !ok {
		return
	}

	form := postForm{Content: strings.TrimSpace(r.FormValue("content"))}
	if errs := a.Val.ValidateStruct(form); len(errs) > 0 {
		a.flashRedirect(w, r, errs[0].Notice(), "/")
		return
	}

	if _, err := a.Store.CreateMessage(r.Context(), uid, form.Content, nil); err != nil {
		a.Logger.Error("Could not create message", "error", err.Error())
		a.flashRedirect(w, r, "could not post the message", "/")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (a *App) createReply(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	form := postForm{Content: strings.TrimSpace(r.FormValue("content"))}
	if errs := a.Val.ValidateStruct(form); len(errs) > 0 {
		a.flashRedirect(w, r, errs[0].Notice(), fmt.Sprintf("/messages/%d/", id))
		return
	}

	_, err := a.Store.CreateMessage(r.Context(), uid, form.Content, &id)
	if errors.Is(err, ErrNotFound) {
		a.flashRedirect(w, r, "that message no longer exists", "/")
		return
	}
	if err != nil {
		a.Logger.Error("Could not create reply", "error", err.Error())
		a.flashRedirect(w, r, "could not post the reply", "/")
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/messages/%d/", id), http.StatusSeeOther)
}

func (a *App) deleteMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	err := a.Store.DeleteMessage(r.Context(), id, uid)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized):
		a.flash(w, "invalid operation")
	case err != nil:
		a.Logger.Error("Could not delete message", "error", err.Error())
		a.flash(w, "could not delete the message")
	}
	a.redirectBack(w, r, "/")
}

// ----------------------------
// Likes
// ----------------------------

func (a *App) likeMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	err := a.Store.LikeMessage(r.Context(), uid, id)
	switch {
	case errors.Is(err, ErrAlreadyLiked):
		a.flash(w, "you already liked this message")
	case errors.Is(err, ErrNotFound):
		a.flash(w, "that message no longer exists")
	case err != nil:
		a.Logger.Error("Could not like message", "error", err.Error())
		a.flash(w, "could not like the message")
	default:
		a.flash(w, "liked!")
	}
	a.redirectBack(w, r, "/")
}

func (a *App) unlikeMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	id, ok := a.messageID(w, r)
	if !ok {
		return
	}

	err := a.Store.UnlikeMessage(r.Context(), uid, id)
	switch {
	case errors.Is(err, ErrNotLiked):
		a.flash(w, "you have not liked this message")
	case errors.Is(err, ErrNotFound):
		a.flash(w, "that message no longer exists")
	case err != nil:
		a.Logger.Error("Could not unlike message", "error", err.Error())
		a.flash(w, "could not remove the like")
	default:
		a.flash(w, "like removed")
	}
	a.redirectBack(w, r, "/")
}

// messageID parses the {messageID} path value, redirecting home when it is
// not a number.
func (a *App) messageID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("messageID"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return 0, false
	}
	return id, true
}
