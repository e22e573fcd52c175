package detect

// screenshotBlockPhrases are looked for in OCR text extracted from a
// screenshot. Order is preserved in the reported reason.
var screenshotBlockPhrases = []string{
	"sorry, you have been blocked",
	"you have been blocked",
	"access denied",
	"blocked",
	"cloudflare",
	"ray id",
	"checking your browser",
	"just a moment",
	"security check",
	"captcha",
}

// screenshotCloudflareMarkers mark OCR text as a Cloudflare page.
var screenshotCloudflareMarkers = []string{"cloudflare", "ray id"}

// screenshotCaptchaMarker marks OCR text as a CAPTCHA page.
const screenshotCaptchaMarker = "captcha"

// htmlCloudflarePhrases are the challenge-page phrases looked for in HTML.
var htmlCloudflarePhrases = []string{
	"checking your browser",
	"just a moment",
	"challenge-platform",
	"ray id",
	"you have been blocked",
	"sorry, you have been blocked",
	"access denied",
	"cloudflare",
}

// htmlCaptchaPhrases mark the HTML as a CAPTCHA wall.
var htmlCaptchaPhrases = []string{"captcha", "recaptcha", "hcaptcha"}

// maxReportedHTMLPhrases caps how many Cloudflare phrases a reason lists.
const maxReportedHTMLPhrases = 3
