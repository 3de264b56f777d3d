package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifeshare/bloodlink-api/pkg/config"
)

func TestSendPostsForm(t *testing.T) {
	var gotPath, gotTo, gotFrom, gotBody string
	var gotUser string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, _, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotTo = r.PostFormValue("To")
		gotFrom = r.PostFormValue("From")
		gotBody = r.PostFormValue("Body")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+910",
		APIBaseURL: srv.URL,
		Timeout:    time.Second,
	}, nil)

	err := client.Send(context.Background(), "+911", "hello")
	require.NoError(t, err)
	assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", gotPath)
	assert.Equal(t, "AC123", gotUser)
	assert.Equal(t, "+911", gotTo)
	assert.Equal(t, "+910", gotFrom)
	assert.Equal(t, "hello", gotBody)
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid number"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient(config.SMSConfig{
		AccountSID: "AC123",
		AuthToken:  "token",
		FromNumber: "+910",
		APIBaseURL: srv.URL,
		Timeout:    time.Second,
	}, nil)

	err := client.Send(context.Background(), "+911", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSendDisabledIsNoop(t *testing.T) {
	client := NewClient(config.SMSConfig{}, nil)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Send(context.Background(), "+911", "hello"))
}
