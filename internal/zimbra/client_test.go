package zimbra

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/blobrescue/internal/config"
	"github.com/dbsmedya/blobrescue/internal/logger"
	"github.com/dbsmedya/blobrescue/internal/types"
)

const authResponseXML = `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Header><context xmlns="urn:zimbra"/></soap:Header>
  <soap:Body>
    <AuthResponse xmlns="urn:zimbraAdmin">
      <authToken>token-123</authToken>
      <lifetime>43199998</lifetime>
    </AuthResponse>
  </soap:Body>
</soap:Envelope>`

const checkResponseXML = `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <CheckBlobConsistencyResponse xmlns="urn:zimbraAdmin">
      <mbox id="5">
        <missingBlobs>
          <item id="257" rev="1200" s="4096" volumeId="1" blob="/opt/zimbra/store/0/5/msg/0/257-1200.msg" external="0" version="1"/>
          <item id="300" rev="1310" s="88" blob="s3://bucket/abc-300" external="1" version="2"/>
        </missingBlobs>
        <incorrectSize/>
        <unexpectedBlobs/>
        <incorrectRevision/>
        <usedBlobs>
          <item id="12" rev="40" s="10" volumeId="1" blob="/opt/zimbra/store/0/5/msg/0/12-40.msg" external="false" version="1"/>
        </usedBlobs>
      </mbox>
    </CheckBlobConsistencyResponse>
  </soap:Body>
</soap:Envelope>`

const faultResponseXML = `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope">
  <soap:Body>
    <soap:Fault>
      <soap:Code><soap:Value>soap:Sender</soap:Value></soap:Code>
      <soap:Reason><soap:Text>no such mailbox: 99</soap:Text></soap:Reason>
      <soap:Detail><Error xmlns="urn:zimbra"><Code>mail.NO_SUCH_MBOX</Code></Error></soap:Detail>
    </soap:Fault>
  </soap:Body>
</soap:Envelope>`

// fakeAdmin answers admin requests by request element name and records request bodies.
type fakeAdmin struct {
	responses map[string]string
	status    int
	requests  []string
}

func (f *fakeAdmin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.requests = append(f.requests, string(body))

	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	for name, resp := range f.responses {
		if strings.Contains(string(body), "<"+name) {
			w.Header().Set("Content-Type", "application/soap+xml")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(resp))
			return
		}
	}
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte("unexpected request"))
}

func newTestClient(t *testing.T, admin *fakeAdmin) *Client {
	t.Helper()
	srv := httptest.NewServer(admin)
	t.Cleanup(srv.Close)

	c, err := NewClient(&config.AdminConfig{
		URL:            srv.URL + "/service/admin/soap",
		User:           "admin@example.com",
		Password:       "secret",
		TimeoutSeconds: 5,
	}, logger.NewDefault())
	require.NoError(t, err)
	return c
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil, nil)
	assert.Error(t, err)

	_, err = NewClient(&config.AdminConfig{}, nil)
	assert.Error(t, err)

	c, err := NewClient(&config.AdminConfig{URL: "https://localhost:7071/service/admin/soap", InsecureSkipVerify: true}, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestAuthenticate(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{"AuthRequest": authResponseXML}}
	c := newTestClient(t, admin)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, "token-123", c.authToken)

	require.Len(t, admin.requests, 1)
	req := admin.requests[0]
	assert.Contains(t, req, `<AuthRequest xmlns="urn:zimbraAdmin">`)
	assert.Contains(t, req, "<name>admin@example.com</name>")
	assert.Contains(t, req, "<password>secret</password>")
	assert.NotContains(t, req, "authToken", "no token before authentication")
}

func TestRequestsBeforeAuthenticateFail(t *testing.T) {
	c := newTestClient(t, &fakeAdmin{})

	_, err := c.AllMailboxIDs(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.CheckBlobConsistency(context.Background(), types.ConsistencyRequest{MailboxID: 1})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestAllMailboxIDs(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{
		"AuthRequest": authResponseXML,
		"GetAllMailboxesRequest": `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body>
			<GetAllMailboxesResponse xmlns="urn:zimbraAdmin" more="0" searchTotal="3">
				<mbox id="1" groupId="1" accountId="a1"/>
				<mbox id="5" groupId="5" accountId="a5"/>
				<mbox id="3" groupId="3" accountId="a3"/>
			</GetAllMailboxesResponse></soap:Body></soap:Envelope>`,
	}}
	c := newTestClient(t, admin)
	require.NoError(t, c.Authenticate(context.Background()))

	ids, err := c.AllMailboxIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 3}, ids)
	assert.Contains(t, admin.requests[1], "<authToken>token-123</authToken>")
	assert.Contains(t, admin.requests[1], `<context xmlns="urn:zimbra">`)
}

func TestCheckBlobConsistency(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{
		"AuthRequest":                 authResponseXML,
		"CheckBlobConsistencyRequest": checkResponseXML,
	}}
	c := newTestClient(t, admin)
	require.NoError(t, c.Authenticate(context.Background()))

	reports, err := c.CheckBlobConsistency(context.Background(), types.ConsistencyRequest{
		MailboxID:       5,
		VolumeIDs:       []int16{1, 2},
		CheckSize:       true,
		ReportUsedBlobs: true,
	})
	require.NoError(t, err)

	req := admin.requests[1]
	assert.Contains(t, req, `checkSize="true"`)
	assert.Contains(t, req, `reportUsedBlobs="true"`)
	assert.Contains(t, req, `<volume id="1">`)
	assert.Contains(t, req, `<volume id="2">`)
	assert.Contains(t, req, `<mbox id="5">`)

	require.Len(t, reports, 1)
	report := reports[0]
	assert.Equal(t, 5, report.MailboxID)

	require.Len(t, report.MissingBlobs, 2)
	assert.Equal(t, types.BlobInfo{
		ItemID:   257,
		Revision: 1200,
		Size:     4096,
		VolumeID: 1,
		Path:     "/opt/zimbra/store/0/5/msg/0/257-1200.msg",
		External: false,
		Version:  1,
	}, report.MissingBlobs[0])
	assert.Equal(t, 300, report.MissingBlobs[1].ItemID)
	assert.True(t, report.MissingBlobs[1].External)
	assert.Equal(t, "s3://bucket/abc-300", report.MissingBlobs[1].Path)

	require.Len(t, report.UsedBlobs, 1)
	assert.Equal(t, 12, report.UsedBlobs[0].ItemID)
	assert.False(t, report.UsedBlobs[0].External)
}

func TestCheckBlobConsistencyWithoutVolumes(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{
		"AuthRequest":                 authResponseXML,
		"CheckBlobConsistencyRequest": checkResponseXML,
	}}
	c := newTestClient(t, admin)
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.CheckBlobConsistency(context.Background(), types.ConsistencyRequest{MailboxID: 5})
	require.NoError(t, err)

	req := admin.requests[1]
	assert.NotContains(t, req, "<volume")
	assert.Contains(t, req, `checkSize="false"`)
	assert.Contains(t, req, `reportUsedBlobs="false"`)
}

func TestSOAPFault(t *testing.T) {
	admin := &fakeAdmin{
		responses: map[string]string{
			"AuthRequest":                 authResponseXML,
			"CheckBlobConsistencyRequest": faultResponseXML,
		},
	}
	c := newTestClient(t, admin)
	require.NoError(t, c.Authenticate(context.Background()))

	admin.status = http.StatusInternalServerError
	_, err := c.CheckBlobConsistency(context.Background(), types.ConsistencyRequest{MailboxID: 99})
	require.Error(t, err)

	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "CheckBlobConsistencyRequest", fault.Request)
	assert.Equal(t, "mail.NO_SUCH_MBOX", fault.Code)
	assert.Equal(t, "no such mailbox: 99", fault.Reason)
	assert.Contains(t, err.Error(), "consistency check for mailbox 99")
}

func TestAuthenticateFault(t *testing.T) {
	admin := &fakeAdmin{
		responses: map[string]string{"AuthRequest": faultResponseXML},
		status:    http.StatusInternalServerError,
	}
	c := newTestClient(t, admin)

	err := c.Authenticate(context.Background())
	var fault *FaultError
	require.ErrorAs(t, err, &fault)
	assert.Empty(t, c.authToken)
}

func TestNonSOAPErrorResponse(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{}}
	c := newTestClient(t, admin)

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
}

func TestAuthenticateWithoutToken(t *testing.T) {
	admin := &fakeAdmin{responses: map[string]string{
		"AuthRequest": `<soap:Envelope xmlns:soap="http://www.w3.org/2003/05/soap-envelope"><soap:Body><AuthResponse xmlns="urn:zimbraAdmin"/></soap:Body></soap:Envelope>`,
	}}
	c := newTestClient(t, admin)

	err := c.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no auth token")
}

func TestFaultErrorFormat(t *testing.T) {
	assert.Equal(t, "AuthRequest failed: bad password (account.AUTH_FAILED)",
		(&FaultError{Request: "AuthRequest", Code: "account.AUTH_FAILED", Reason: "bad password"}).Error())
	assert.Equal(t, "AuthRequest failed: bad password",
		(&FaultError{Request: "AuthRequest", Reason: "bad password"}).Error())
}
