package zlog

import (
	"net/http"
	"strings"
)

// LevelHTTPHandler reports the current level on GET and changes it on PUT
// with the new level in the "v" query or form value.
func (l *Logger) LevelHTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(l.Level()))
		case http.MethodPut:
			name := r.URL.Query().Get("v")
			if name == "" {
				name = r.FormValue("v")
			}
			name = strings.ToLower(strings.TrimSpace(name))
			switch name {
			case "debug", "info", "warn", "error":
			default:
				http.Error(w, "level must be one of debug/info/warn/error", http.StatusBadRequest)
				return
			}
			l.SetLevel(name)
			_, _ = w.Write([]byte(l.Level()))
		default:
			w.Header().Set("Allow", "GET, PUT")
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}
