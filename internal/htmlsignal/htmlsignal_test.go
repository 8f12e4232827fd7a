package htmlsignal

import (
	"strings"
	"testing"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		html string
		want Signal
	}{
		{
			name: "login form with token",
			html: `<html><body><form id="loginform">
				<input name="__RequestVerificationToken" value="abc"/>
			</form></body></html>`,
			want: SignalLoginPage,
		},
		{
			name: "login form with captcha image",
			html: `<html><body><form id="loginform">
				<img id="captchaImg" src="/captcha"/>
			</form></body></html>`,
			want: SignalLoginPage,
		},
		{
			name: "maintenance banner",
			html: `<html><body><div>系统维护中，请稍后再试</div></body></html>`,
			want: SignalErrorPage,
		},
		{
			name: "ordinary content",
			html: `<html><body><div>欢迎使用选课系统</div></body></html>`,
			want: SignalUnknown,
		},
		{
			name: "empty body",
			html: ``,
			want: SignalUnknown,
		},
		{
			name: "form without token or captcha",
			html: `<html><body><form id="loginform"><input name="whatever"/></form></body></html>`,
			want: SignalUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(strings.NewReader(tc.html))
			if got != tc.want {
				t.Errorf("Detect() = %v, want %v", got, tc.want)
			}
		})
	}
}
