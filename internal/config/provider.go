package config

import (
	"fmt"
	"sort"
	"strings"
)

// Provider names a mail provider with a known server profile.
type Provider string

const (
	ProviderQQ      Provider = "qq"
	Provider163     Provider = "163"
	Provider126     Provider = "126"
	ProviderSina    Provider = "sina"
	ProviderGmail   Provider = "gmail"
	ProviderOutlook Provider = "outlook"
	ProviderYahoo   Provider = "yahoo"
)

// SMTPSecurity selects how the submission connection is protected.
type SMTPSecurity string

const (
	SMTPStartTLS SMTPSecurity = "starttls"
	SMTPTLS      SMTPSecurity = "tls"
	SMTPNone     SMTPSecurity = "none"
)

func (s SMTPSecurity) validate() error {
	switch s {
	case SMTPStartTLS, SMTPTLS, SMTPNone:
		return nil
	default:
		return fmt.Errorf("unsupported smtp_security %q", string(s))
	}
}

// Profile holds the IMAP and SMTP endpoints of a provider.
type Profile struct {
	IMAPHost     string
	IMAPPort     int
	SMTPHost     string
	SMTPPort     int
	SMTPSecurity SMTPSecurity
}

func (p Profile) IMAPAddr() string {
	return fmt.Sprintf("%s:%d", p.IMAPHost, p.IMAPPort)
}

func (p Profile) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", p.SMTPHost, p.SMTPPort)
}

var profiles = map[Provider]Profile{
	ProviderQQ:      {IMAPHost: "imap.qq.com", IMAPPort: 993, SMTPHost: "smtp.qq.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	Provider163:     {IMAPHost: "imap.163.com", IMAPPort: 993, SMTPHost: "smtp.163.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	Provider126:     {IMAPHost: "imap.126.com", IMAPPort: 993, SMTPHost: "smtp.126.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	ProviderSina:    {IMAPHost: "imap.sina.com", IMAPPort: 993, SMTPHost: "smtp.sina.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	ProviderGmail:   {IMAPHost: "imap.gmail.com", IMAPPort: 993, SMTPHost: "smtp.gmail.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	ProviderOutlook: {IMAPHost: "outlook.office365.com", IMAPPort: 993, SMTPHost: "smtp-mail.outlook.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
	ProviderYahoo:   {IMAPHost: "imap.mail.yahoo.com", IMAPPort: 993, SMTPHost: "smtp.mail.yahoo.com", SMTPPort: 587, SMTPSecurity: SMTPStartTLS},
}

// Profile returns the server profile for p.
func (p Provider) Profile() (Profile, error) {
	profile, ok := profiles[Provider(strings.ToLower(strings.TrimSpace(string(p))))]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported email_type %q (supported: %s)", string(p), strings.Join(Providers(), ", "))
	}
	return profile, nil
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
