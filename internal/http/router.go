package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Events       *EventHandler
	Locks        *LockHandler
	Participants *ParticipantHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Events != nil {
		mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Events.List(w, r)
			case http.MethodPost:
				cfg.Events.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/events/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/events/")
			segments := splitPath(rest)
			if len(segments) == 0 {
				http.NotFound(w, r)
				return
			}

			ctx := ContextWithEventID(r.Context(), segments[0])
			r = r.WithContext(ctx)

			switch {
			case len(segments) == 1:
				switch r.Method {
				case http.MethodGet:
					cfg.Events.Get(w, r)
				case http.MethodPut:
					cfg.Events.Update(w, r)
				case http.MethodDelete:
					cfg.Events.Delete(w, r)
				default:
					methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
				}
			case segments[1] == "locks" && cfg.Locks != nil:
				routeLocks(cfg.Locks, w, r, segments[2:])
			case segments[1] == "roster":
				routeRoster(cfg.Events, w, r, segments[2:])
			default:
				http.NotFound(w, r)
			}
		})
	}

	if cfg.Participants != nil {
		mux.HandleFunc("/participants", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Participants.List(w, r)
		})
		mux.HandleFunc("/participants/", func(w http.ResponseWriter, r *http.Request) {
			segments := splitPath(strings.TrimPrefix(r.URL.Path, "/participants/"))
			switch {
			case len(segments) == 1 && segments[0] == "stream":
				if r.Method != http.MethodGet {
					methodNotAllowed(w, http.MethodGet)
					return
				}
				cfg.Participants.Stream(w, r)
			case len(segments) == 2:
				switch r.Method {
				case http.MethodPut:
					cfg.Participants.Ingest(w, r, segments[0], segments[1])
				case http.MethodDelete:
					cfg.Participants.Remove(w, r, segments[0], segments[1])
				default:
					methodNotAllowed(w, http.MethodPut, http.MethodDelete)
				}
			default:
				http.NotFound(w, r)
			}
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

// routeLocks dispatches the /events/{id}/locks subtree. The event id is
// already on the request context.
func routeLocks(locks *LockHandler, w http.ResponseWriter, r *http.Request, segments []string) {
	switch {
	case len(segments) == 0:
		switch r.Method {
		case http.MethodGet:
			locks.List(w, r)
		case http.MethodPost:
			locks.Acquire(w, r)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case len(segments) == 1 && segments[0] == "stream":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		locks.Stream(w, r)
	case len(segments) == 2 && segments[0] == "team-leader":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		locks.ReleaseAll(w, r, segments[1])
	case len(segments) == 2:
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		locks.Release(w, r, segments[0], segments[1])
	default:
		http.NotFound(w, r)
	}
}

// routeRoster dispatches the /events/{id}/roster subtree.
func routeRoster(events *EventHandler, w http.ResponseWriter, r *http.Request, segments []string) {
	switch {
	case len(segments) == 1 && segments[0] == "assign":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		events.Assign(w, r)
	case len(segments) == 2 && segments[0] == "slots":
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, http.MethodDelete)
			return
		}
		events.Unassign(w, r, segments[1])
	default:
		http.NotFound(w, r)
	}
}

func splitPath(rest string) []string {
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
