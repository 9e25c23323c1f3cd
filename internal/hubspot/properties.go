package hubspot

import (
	"strings"

	"github.com/triario/avatar-backend/internal/prospect"
)

// industries maps provider industry names onto the portal's industry options.
var industries = map[string]string{
	"farming":       "Consumo masivo",
	"agriculture":   "Consumo masivo",
	"agroindustria": "Consumo masivo",
	"software":      "Software y tecnologías SaaS",
	"technology":    "Software y tecnologías SaaS",
	"healthcare":    "Servicios de salud",
	"finance":       "Servicios financieros",
	"construction":  "Construcción",
	"retail":        "Retail y ventas on-line",
}

// MapIndustry returns the portal industry option for a provider industry,
// or "Otro" when there is no mapping.
func MapIndustry(industry string) string {
	if v, ok := industries[strings.ToLower(strings.TrimSpace(industry))]; ok {
		return v
	}
	return "Otro"
}

func contactProperties(p prospect.Prospect, e *Enrichment) map[string]string {
	props := map[string]string{
		"firstname":      p.FirstName,
		"lastname":       p.LastName,
		"company":        p.Company,
		"jobtitle":       p.Role,
		"website":        p.Website,
		"hs_lead_status": "NEW",
		"lifecyclestage": "lead",
	}
	if e == nil {
		return props
	}
	if e.Industry != "" {
		props["industry"] = MapIndustry(e.Industry)
	}
	if e.Phone != "" {
		props["phone"] = e.Phone
	}
	if e.Address != "" {
		props["address"] = e.Address
	}
	if e.AnnualRevenue != "" {
		props["annualrevenue"] = e.AnnualRevenue
	}
	return props
}
