package classify

import (
	"regexp"
	"strings"
)

// vendorHints are substrings that mark a script name or URL as a known
// third-party library, framework, or analytics tag.
var vendorHints = []string{
	// Libraries, frameworks, utilities
	"jquery", "lodash", "underscore", "moment", "dayjs",
	"bootstrap", "popper", "tailwind", "uikit", "semantic", "antd",
	"swiper", "slick", "hammer", "gsap", "anime",
	"chart", "chart.min", "chartjs", "d3.", "three.",
	"datatables", "select2", "fullcalendar", "fancybox", "lightbox",
	"react", "react-dom", "preact", "vue", "angular", "svelte",

	// Analytics, tag managers, ads
	"gtag", "googletagmanager", "analytics", "adsbygoogle",
	"hotjar", "mixpanel", "clarity", "matomo", "tagmanager",

	// Path hints
	"/vendor/", "/vendors/", "/lib/", "/libs/", "/plugin/", "/plugins/", "/cdn/",

	// Vendors usually ship minified
	".min.js",
}

// vendorExceptions are names that look like vendor hints but are
// typically application bundles. App bundles get minified too.
var vendorExceptions = []string{
	"app.min.js", "bundle.min.js", "main.min.js", "index.min.js",
	"/static/js/main.", "/static/js/app.", "/assets/js/app.", "/dist/app.",
}

// cdnDomains are hosts that only ever serve third-party code.
var cdnDomains = []string{
	"unpkg.com", "cdn.jsdelivr.net", "cdnjs.cloudflare.com",
	"ajax.googleapis.com", "staticfile.org", "yastatic.net",
	"lib.baomitu.com", "cloudflare", "bootcdn", "googleapis",
}

// vendorChunkPattern matches webpack-style vendor chunk names such as
// "vendors~main.js", "vendor.bundle.js", or "/vendors/chunk.js".
var vendorChunkPattern = regexp.MustCompile(`(vendor|vendors)(~|\.|/)`)

// IsProbablyVendor reports whether a script filename or URL looks like
// third-party code. It errs toward vendor: a false positive costs one
// missed app file, a false negative wastes classifier tokens.
func IsProbablyVendor(nameOrURL string) bool {
	s := strings.ToLower(nameOrURL)
	if s == "" {
		return false
	}

	for _, d := range cdnDomains {
		if strings.Contains(s, d) {
			return true
		}
	}

	for _, hint := range vendorHints {
		if !strings.Contains(s, hint) {
			continue
		}
		excepted := false
		for _, e := range vendorExceptions {
			if strings.Contains(s, e) {
				excepted = true
				break
			}
		}
		if !excepted {
			return true
		}
	}

	return vendorChunkPattern.MatchString(s)
}
