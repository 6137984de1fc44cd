// middleware/locale.go
package middleware

import (
	"log"
	"time"

	"guild-quest-engine/engine"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"
)

const LocaleKey = "locale"

// Regions whose weeks start on a day other than Monday (CLDR firstDay data).
var firstDayByRegion = map[string]time.Weekday{
	"AG": time.Sunday, "AS": time.Sunday, "BD": time.Sunday, "BR": time.Sunday,
	"BS": time.Sunday, "BT": time.Sunday, "BW": time.Sunday, "BZ": time.Sunday,
	"CA": time.Sunday, "CN": time.Sunday, "CO": time.Sunday, "DM": time.Sunday,
	"DO": time.Sunday, "ET": time.Sunday, "GT": time.Sunday, "GU": time.Sunday,
	"HK": time.Sunday, "HN": time.Sunday, "ID": time.Sunday, "IL": time.Sunday,
	"IN": time.Sunday, "JM": time.Sunday, "JP": time.Sunday, "KE": time.Sunday,
	"KH": time.Sunday, "KR": time.Sunday, "LA": time.Sunday, "MH": time.Sunday,
	"MM": time.Sunday, "MO": time.Sunday, "MT": time.Sunday, "MX": time.Sunday,
	"MZ": time.Sunday, "NI": time.Sunday, "NP": time.Sunday, "PA": time.Sunday,
	"PE": time.Sunday, "PH": time.Sunday, "PK": time.Sunday, "PR": time.Sunday,
	"PT": time.Sunday, "PY": time.Sunday, "SA": time.Sunday, "SG": time.Sunday,
	"SV": time.Sunday, "TH": time.Sunday, "TT": time.Sunday, "TW": time.Sunday,
	"UM": time.Sunday, "US": time.Sunday, "VE": time.Sunday, "VI": time.Sunday,
	"WS": time.Sunday, "YE": time.Sunday, "ZA": time.Sunday, "ZW": time.Sunday,
	"AE": time.Saturday, "AF": time.Saturday, "BH": time.Saturday, "DJ": time.Saturday,
	"DZ": time.Saturday, "EG": time.Saturday, "IQ": time.Saturday, "IR": time.Saturday,
	"JO": time.Saturday, "KW": time.Saturday, "LY": time.Saturday, "OM": time.Saturday,
	"QA": time.Saturday, "SD": time.Saturday, "SY": time.Saturday,
	"MV": time.Friday,
}

// FirstWeekday returns the first day of the week for a BCP 47 tag such as
// "en-US" or an Accept-Language header. Unknown input means Monday.
func FirstWeekday(header string) time.Weekday {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return time.Monday
	}
	region, _ := tags[0].Region()
	if wd, ok := firstDayByRegion[region.String()]; ok {
		return wd
	}
	return time.Monday
}

// LocaleMiddleware resolves the caller's calendar from X-User-Locale (or
// Accept-Language) and X-User-Timezone. Bad values fall back to UTC/Monday.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		locale := engine.DefaultLocale

		tag := c.Get("X-User-Locale")
		if tag == "" {
			tag = c.Get(fiber.HeaderAcceptLanguage)
		}
		if tag != "" {
			locale.FirstWeekday = FirstWeekday(tag)
		}

		if tz := c.Get("X-User-Timezone"); tz != "" {
			loc, err := time.LoadLocation(tz)
			if err != nil {
				log.Printf("⚠️ [LOCALE] unknown timezone %q, using UTC", tz)
			} else {
				locale.Location = loc
			}
		}

		c.Locals(LocaleKey, locale)
		return c.Next()
	}
}

// Locale returns the calendar set by LocaleMiddleware.
func Locale(c *fiber.Ctx) engine.Locale {
	if l, ok := c.Locals(LocaleKey).(engine.Locale); ok {
		return l
	}
	return engine.DefaultLocale
}
