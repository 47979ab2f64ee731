package impersonate

import "github.com/tendant/simple-secure/pkg/principal"

// Surface is a UI location that must show the switch-back indicator.
type Surface string

const (
	SurfaceToolbar Surface = "toolbar"
	SurfaceNotice  Surface = "notice"
	SurfaceFooter  Surface = "footer"
)

// Indicator tells an impersonated session how to switch back.
type Indicator struct {
	OriginID    principal.ID `json:"origin_id"`
	OriginLabel string       `json:"origin_label"`
	Label       string       `json:"label"`
	Notice      string       `json:"notice"`
	Surfaces    []Surface    `json:"surfaces"`
}

func newIndicator(origin principal.ID, name string) *Indicator {
	return &Indicator{
		OriginID:    origin,
		OriginLabel: name,
		Label:       "Switch back to " + name,
		Notice:      "You are currently switched into another user.",
		Surfaces:    []Surface{SurfaceToolbar, SurfaceNotice, SurfaceFooter},
	}
}
