package login

import "testing"

func TestIsPermanentFailureMsg(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"invalid password", true},
		{"account does not exist", true},
		{"密码错误", true},
		{"账号不存在", true},
		{"captcha mismatch, try again", false},
		{"验证码错误", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isPermanentFailureMsg(tc.msg); got != tc.want {
			t.Errorf("isPermanentFailureMsg(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestIsCaptchaMisrecognitionMsg(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"captcha incorrect", true},
		{"验证码错误", true},
		{"invalid password", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := isCaptchaMisrecognitionMsg(tc.msg); got != tc.want {
			t.Errorf("isCaptchaMisrecognitionMsg(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestRedactMsg(t *testing.T) {
	short := "short message"
	if got := redactMsg(short); got != short {
		t.Errorf("redactMsg(short) = %q, want unchanged", got)
	}
	long := "this message is definitely longer than forty characters for sure"
	got := redactMsg(long)
	if len(got) != 43 || got[len(got)-3:] != "..." {
		t.Errorf("redactMsg(long) = %q, want truncated with ellipsis", got)
	}
}
