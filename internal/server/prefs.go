package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/starlight-qa/starlight/pkg/report"
)

const (
	filtersCookie = "starlight_filters"
	keyTeam       = "team"
)

// viewPrefs is what the report form submits: the filters plus the team
// preset they were derived from.
type viewPrefs struct {
	Filters report.Filters
	Team    string
	// TeamTitles is set when the categories came from the team.
	TeamTitles []string
}

func defaultPrefs() viewPrefs {
	return viewPrefs{Filters: report.Filters{Priority: report.PriorityNone}}
}

// pagePrefs resolves the filters of a report page: the query when the form
// was submitted, else the last saved preferences, else the defaults.
// fromQuery tells the caller to save them.
func (s *Server) pagePrefs(ctx context.Context, r *http.Request) (prefs viewPrefs, fromQuery bool, err error) {
	q := r.URL.Query()
	if _, ok := q[report.KeyPriority]; ok {
		prefs, err = s.prefsFromValues(ctx, q)
		return prefs, true, err
	}
	if c, cerr := r.Cookie(filtersCookie); cerr == nil {
		if saved, perr := url.ParseQuery(c.Value); perr == nil {
			if prefs, err = s.prefsFromValues(ctx, saved); err == nil {
				return prefs, false, nil
			}
		}
	}
	return defaultPrefs(), false, nil
}

// prefsFromValues parses submitted values. A team fills the category
// restriction unless categories were given explicitly.
func (s *Server) prefsFromValues(ctx context.Context, v url.Values) (viewPrefs, error) {
	f, err := report.FiltersFromValues(v)
	if err != nil {
		return viewPrefs{}, err
	}
	prefs := viewPrefs{Filters: f, Team: v.Get(keyTeam)}
	if _, explicit := v[report.KeyCategories]; prefs.Team != "" && !explicit {
		team, err := s.DB.GetTeam(ctx, prefs.Team)
		if err != nil {
			return viewPrefs{}, err
		}
		if titles := team.Titles(); len(titles) > 0 {
			prefs.Filters.Categories = titles
			prefs.TeamTitles = titles
		}
	}
	return prefs, nil
}

var prefsKeys = []string{
	report.KeyPriority,
	report.KeyCategories,
	report.KeyVariant,
	report.KeyTC911,
	report.KeyOnlyBlank,
	keyTeam,
}

// setPrefsCookie saves the submitted form as is, so a team preset keeps
// following later changes to the team.
func setPrefsCookie(w http.ResponseWriter, submitted url.Values) {
	v := url.Values{}
	for _, k := range prefsKeys {
		if vals, ok := submitted[k]; ok {
			v[k] = vals
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     filtersCookie,
		Value:    v.Encode(),
		Path:     "/",
		MaxAge:   365 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
