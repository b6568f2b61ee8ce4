package handler

import (
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/flynkle/flynkle-api/internal/quota"
	"github.com/flynkle/flynkle-api/internal/response"
)

type planView struct {
	Name string `json:"name"`
	quota.Limits
}

// ListPlans returns the static plan catalog.  The route sits behind the
// response cache; the catalog only changes on deploy.
func ListPlans(c echo.Context) error {
	views := make([]planView, 0, len(quota.Plans))
	for name, limits := range quota.Plans {
		views = append(views, planView{Name: name, Limits: limits})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Price < views[j].Price })
	return response.Success(c, views)
}
