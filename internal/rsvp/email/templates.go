package email

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
)

const (
	siteURL        = "https://mossesandvanesa.com"
	headerImageURL = siteURL + "/headeremail.png"
)

var (
	fullNamePlaceholder   = regexp.MustCompile(`(?i)#fullname`)
	paxAllowedPlaceholder = regexp.MustCompile(`(?i)#paxallowed`)
)

// Personalize substitutes the #fullname and #paxallowed placeholders,
// case-insensitively, in admin-authored subject or body text.
func Personalize(raw, fullName string, paxAllowed int) string {
	out := fullNamePlaceholder.ReplaceAllString(raw, fullName)
	return paxAllowedPlaceholder.ReplaceAllString(out, strconv.Itoa(paxAllowed))
}

// ConfirmationHTML builds the RSVP confirmation email. updateURL links back
// to the guest's token-addressed RSVP page.
func ConfirmationHTML(guestName, updateURL string) string {
	return strings.TrimSpace(fmt.Sprintf(`
<div style="background:#f6f6f6;padding:24px 0;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;overflow:hidden;font-family:Arial,Helvetica,sans-serif;color:#222;">
    <tr>
      <td style="padding:0;">
        <img src="%s" alt="Mosses &amp; Vanesa" width="600" style="display:block;width:100%%;height:auto;" />
      </td>
    </tr>
    <tr>
      <td style="padding:28px 32px;">
        <p style="margin:0 0 16px;font-size:16px;">
          Dear <strong>%s</strong>,
        </p>
        <p style="margin:0 0 16px;font-size:15px;line-height:1.7;">
          We are truly excited to have you be part of something very special to us. Thank you for confirming your attendance. It means so much to know that you will be there to witness and celebrate our wedding day.
        </p>
        <p style="margin:0 0 20px;font-size:15px;line-height:1.7;">
          Your presence will make our celebration even more meaningful as we begin this new chapter of our lives together. We cannot wait to share this unforgettable moment with you.
        </p>
        <hr style="border:none;border-top:1px solid #eee;margin:24px 0;" />
        <h3 style="margin:0 0 12px;font-size:17px;">Wedding Details</h3>
        <p style="margin:0 0 6px;font-size:15px;"><strong>March 6, 2026</strong></p>
        <p style="margin:0 0 6px;font-size:15px;"><strong>2:00 PM</strong></p>
        <p style="margin:0 0 18px;font-size:15px;">
          Saint Michael the Archangel Quasi Parish, Eden
        </p>
        <p style="margin:0 0 10px;font-size:15px;line-height:1.7;">
          For more information regarding attire, program details, and other important updates, please visit our wedding website:
        </p>
        <p style="margin:0 0 18px;">
          <a href="%s" style="color:#c07a5a;text-decoration:none;font-weight:bold;">%s</a>
        </p>
        <p style="margin:0 0 16px;font-size:15px;line-height:1.7;">
          If you would like to support us as we start our family together, you may do so by scanning the QR code provided. Your love and presence are more than enough, and any support is sincerely appreciated.
        </p>
        <p style="margin:0 0 16px;font-size:15px;line-height:1.7;">
          We look forward to celebrating with you.
        </p>
        <p style="margin:0;font-size:15px;line-height:1.7;">
          With love and gratitude,<br/>
          <strong>Mosses and Vanesa</strong>
        </p>
      </td>
    </tr>
    <tr>
      <td style="padding:16px 32px 28px;text-align:center;font-size:12px;color:#777;">
        Need to update your RSVP?<br/>
        <a href="%s" style="color:#777;text-decoration:underline;">Manage your RSVP</a>
      </td>
    </tr>
  </table>
</div>`,
		headerImageURL,
		html.EscapeString(guestName),
		siteURL, siteURL,
		html.EscapeString(updateURL),
	))
}

// AnnouncementHTML wraps an already-personalized announcement in the fixed
// email shell. bodyText is admin-authored free text; it is escaped here and
// newlines become <br/>.
func AnnouncementHTML(subject, bodyText string) string {
	bodyHTML := strings.ReplaceAll(html.EscapeString(bodyText), "\n", "<br/>")

	return strings.TrimSpace(fmt.Sprintf(`
<div style="background:#f6f6f6;padding:24px 0;">
  <table width="100%%" cellpadding="0" cellspacing="0" style="max-width:600px;margin:0 auto;background:#ffffff;border-radius:12px;font-family:Arial,Helvetica,sans-serif;">
    <tr>
      <td>
        <img src="%s" style="width:100%%;display:block" />
      </td>
    </tr>
    <tr>
      <td style="padding:22px 28px;color:#222;">
        <h2 style="margin:0 0 12px;font-size:18px;">%s</h2>
        <div style="font-size:15px;line-height:1.7;">
          %s
        </div>
        <hr style="margin:22px 0;border:none;border-top:1px solid #eee;" />
        <p style="font-size:13px;color:#666;">
          View the Live Wall at
          <a href="%s#live" style="color:#c07a5a;font-weight:bold;text-decoration:none;">%s#live</a>.
        </p>
      </td>
    </tr>
  </table>
</div>`,
		headerImageURL,
		html.EscapeString(subject),
		bodyHTML,
		siteURL, siteURL,
	))
}
