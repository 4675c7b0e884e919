package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type bulkUserReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=student teacher admin"`
	ClassID  string `json:"class_id"`
}

type bulkUsersReq struct {
	Users []bulkUserReq `json:"users" validate:"required,min=1,dive"`
}

// POST /users/bulk
//
// Upserts accounts by username. Existing users keep their id; password and
// role are overwritten. Used for term-start roster loads.
func BulkUpsertUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkUsersReq
		if !decodeJSON(w, r, &req) {
			return
		}
		created, updated := 0, 0
		for _, u := range req.Users {
			hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
			if err != nil {
				http.Error(w, "hash password", http.StatusInternalServerError)
				return
			}
			var existing string
			err = db.QueryRowContext(r.Context(),
				`SELECT id FROM users WHERE username=$1`, u.Username).Scan(&existing)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				_, err = db.ExecContext(r.Context(),
					`INSERT INTO users (id,username,password_hash,role,class_id,created_at)
					 VALUES ($1,$2,$3,$4,$5,$6)`,
					uuid.NewString(), u.Username, string(hash), u.Role, u.ClassID, time.Now().Unix())
				if err == nil {
					created++
				}
			case err == nil:
				_, err = db.ExecContext(r.Context(),
					`UPDATE users SET password_hash=$1, role=$2, class_id=$3 WHERE id=$4`,
					string(hash), u.Role, u.ClassID, existing)
				if err == nil {
					updated++
				}
			}
			if err != nil {
				http.Error(w, "upsert failed for "+u.Username, http.StatusInternalServerError)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]int{"created": created, "updated": updated})
	}
}

type userView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	ClassID  string `json:"class_id,omitempty"`
}

// GET /users?class_id=
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := `SELECT id,username,role,COALESCE(class_id,'') FROM users ORDER BY username`
		args := []any{}
		if classID := r.URL.Query().Get("class_id"); classID != "" {
			q = `SELECT id,username,role,COALESCE(class_id,'') FROM users WHERE class_id=$1 ORDER BY username`
			args = append(args, classID)
		}
		rows, err := db.QueryContext(r.Context(), q, args...)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rows.Close()
		out := []userView{}
		for rows.Next() {
			var u userView
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.ClassID); err != nil {
				writeErr(w, err)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// POST /users/change-password
func ChangePasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if !decodeJSON(w, r, &req) {
			return
		}
		sub := subjectOf(r)
		var hash string
		err := db.QueryRowContext(r.Context(),
			`SELECT password_hash FROM users WHERE id=$1`, sub).Scan(&hash)
		if err != nil {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.OldPassword)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET password_hash=$1 WHERE id=$2`, string(newHash), sub); err != nil {
			http.Error(w, "update failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
	}
}
