package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestRequest_DecodeBodyForms(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []byte
	}{
		{"null body", `{"method":"GET","url":"https://test.test","headers":{},"body":null}`, nil},
		{"missing body", `{"method":"GET","url":"https://test.test","headers":{}}`, nil},
		{"string body", `{"method":"POST","url":"u","headers":{},"body":"héllo"}`, []byte("héllo")},
		{"byte array body", `{"method":"POST","url":"u","headers":{},"body":[0,255,72]}`, []byte{0, 255, 72}},
		{"empty array body", `{"method":"POST","url":"u","headers":{},"body":[]}`, []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.json), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if !bytes.Equal(req.Body, tt.want) {
				t.Errorf("body = %v, want %v", []byte(req.Body), tt.want)
			}
			if (req.Body == nil) != (tt.want == nil) {
				t.Errorf("body nil = %v, want nil = %v", req.Body == nil, tt.want == nil)
			}
		})
	}
}

func TestRequest_DecodeRejectsBadBody(t *testing.T) {
	for _, body := range []string{`[256]`, `[-1]`, `{}`, `12`} {
		var req Request
		err := json.Unmarshal([]byte(`{"method":"GET","url":"u","headers":{},"body":`+body+`}`), &req)
		if err == nil {
			t.Errorf("body %s: expected error", body)
		}
	}
}

func TestHeaders_EmbeddedJSONString(t *testing.T) {
	var req Request
	raw := `{"method":"GET","url":"u","headers":"{\"accept\":\"text/html\"}"}`
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.Headers["accept"] != "text/html" {
		t.Errorf("headers = %v", req.Headers)
	}

	out, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), `"headers":{"accept":"text/html"}`) {
		t.Errorf("headers should encode as an object: %s", out)
	}
}

func TestBody_Encoding(t *testing.T) {
	text, err := json.Marshal(Body("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != `"hi"` {
		t.Errorf("utf-8 body = %s, want \"hi\"", text)
	}

	binary, err := json.Marshal(Body{0xC0, 0x01})
	if err != nil {
		t.Fatal(err)
	}
	if string(binary) != `[192,1]` {
		t.Errorf("binary body = %s, want [192,1]", binary)
	}
}

func TestResponse_BodyIsByteArray(t *testing.T) {
	out, err := json.Marshal(Response{Status: 404, Headers: Headers{}, Body: ByteArray("nope")})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"status":404,"headers":{},"body":[110,111,112,101]}`
	if string(out) != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestErrorKind_JSON(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		json string
	}{
		{TimeoutKind, `"Timeout"`},
		{SerialKind, `"Serial"`},
		{StatusKind(404), `{"Status":404}`},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			out, err := json.Marshal(tt.kind)
			if err != nil {
				t.Fatal(err)
			}
			if string(out) != tt.json {
				t.Errorf("marshal = %s, want %s", out, tt.json)
			}
			var back ErrorKind
			if err := json.Unmarshal(out, &back); err != nil {
				t.Fatal(err)
			}
			if back != tt.kind {
				t.Errorf("unmarshal = %v, want %v", back, tt.kind)
			}
		})
	}

	var k ErrorKind
	if err := json.Unmarshal([]byte(`"Nope"`), &k); err == nil {
		t.Error("expected error for unknown kind")
	}
	if err := json.Unmarshal([]byte(`{"Other":1}`), &k); err == nil {
		t.Error("expected error for unknown tagged kind")
	}
}

func TestResult_Envelope(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		out, err := json.Marshal(Success(&Response{Status: 200, Headers: Headers{"a": "b"}}))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(out), `{"Ok":{"status":200`) {
			t.Errorf("got %s", out)
		}
	})

	t.Run("err", func(t *testing.T) {
		out, err := json.Marshal(Failure(NewRequestError(StatusKind(404), "http://x", "not found")))
		if err != nil {
			t.Fatal(err)
		}
		want := `{"Err":{"kind":{"Status":404},"url":"http://x","message":"not found"}}`
		if string(out) != want {
			t.Errorf("got %s, want %s", out, want)
		}
	})

	t.Run("empty result", func(t *testing.T) {
		if _, err := json.Marshal(Result{}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("decode requires exactly one side", func(t *testing.T) {
		var r Result
		if err := json.Unmarshal([]byte(`{}`), &r); err == nil {
			t.Error("expected error for empty envelope")
		}
		if err := json.Unmarshal([]byte(`{"Err":{"kind":"Timeout","message":"slow"}}`), &r); err != nil {
			t.Fatal(err)
		}
		if r.Err == nil || r.Err.Kind != TimeoutKind || r.Err.URL != nil {
			t.Errorf("got %+v", r.Err)
		}
	})
}

func TestRequestError_Message(t *testing.T) {
	e := NewRequestError(TimeoutKind, "", "deadline exceeded")
	if e.URL != nil {
		t.Error("empty url should be omitted")
	}
	if e.Error() != "Timeout error: deadline exceeded" {
		t.Errorf("Error() = %q", e.Error())
	}
	e = NewRequestError(StatusKind(500), "http://x", "boom")
	if e.Error() != "Status(500) error for http://x: boom" {
		t.Errorf("Error() = %q", e.Error())
	}
}

func TestParseByteList(t *testing.T) {
	got, err := ParseByteList("72, 105,0,255")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{72, 105, 0, 255}) {
		t.Errorf("got %v", got)
	}

	empty, err := ParseByteList("")
	if err != nil || len(empty) != 0 {
		t.Errorf("empty list = %v, %v", empty, err)
	}

	for _, bad := range []string{"256", "a,b", "1,,2"} {
		if _, err := ParseByteList(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}
