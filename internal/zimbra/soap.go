package zimbra

import (
	"encoding/xml"
	"fmt"
)

const soapNamespace = "http://www.w3.org/2003/05/soap-envelope"

// requestEnvelope is a SOAP 1.2 envelope carrying one admin request.
type requestEnvelope struct {
	XMLName xml.Name       `xml:"soap:Envelope"`
	SoapNS  string         `xml:"xmlns:soap,attr"`
	Header  *requestHeader `xml:"soap:Header,omitempty"`
	Body    requestBody    `xml:"soap:Body"`
}

type requestHeader struct {
	Context headerContext
}

type headerContext struct {
	XMLName   xml.Name `xml:"urn:zimbra context"`
	AuthToken string   `xml:"authToken"`
}

type requestBody struct {
	Request interface{}
}

type responseEnvelope struct {
	Body responseBody `xml:"Body"`
}

type responseBody struct {
	Fault *soapFault `xml:"Fault"`
	Inner []byte     `xml:",innerxml"`
}

type soapFault struct {
	Reason string `xml:"Reason>Text"`
	Code   string `xml:"Detail>Error>Code"`
}

// FaultError is a SOAP fault returned by the admin service.
type FaultError struct {
	Request string
	Code    string
	Reason  string
}

func (e *FaultError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("%s failed: %s", e.Request, e.Reason)
	}
	return fmt.Sprintf("%s failed: %s (%s)", e.Request, e.Reason, e.Code)
}

type authRequest struct {
	XMLName  xml.Name `xml:"urn:zimbraAdmin AuthRequest"`
	Name     string   `xml:"name"`
	Password string   `xml:"password"`
}

type authResponse struct {
	AuthToken string `xml:"authToken"`
}

type getAllMailboxesRequest struct {
	XMLName xml.Name `xml:"urn:zimbraAdmin GetAllMailboxesRequest"`
}

type getAllMailboxesResponse struct {
	Mailboxes []idAttr `xml:"mbox"`
}

type idAttr struct {
	ID int `xml:"id,attr"`
}

type volumeAttr struct {
	ID int16 `xml:"id,attr"`
}

type checkBlobConsistencyRequest struct {
	XMLName         xml.Name     `xml:"urn:zimbraAdmin CheckBlobConsistencyRequest"`
	CheckSize       bool         `xml:"checkSize,attr"`
	ReportUsedBlobs bool         `xml:"reportUsedBlobs,attr"`
	Volumes         []volumeAttr `xml:"volume"`
	Mailboxes       []idAttr     `xml:"mbox"`
}

type checkBlobConsistencyResponse struct {
	Mailboxes []mailboxResult `xml:"mbox"`
}

type mailboxResult struct {
	ID           int        `xml:"id,attr"`
	MissingBlobs []blobItem `xml:"missingBlobs>item"`
	UsedBlobs    []blobItem `xml:"usedBlobs>item"`
}

type blobItem struct {
	ID       int    `xml:"id,attr"`
	Revision int    `xml:"rev,attr"`
	Size     int64  `xml:"s,attr"`
	VolumeID int16  `xml:"volumeId,attr"`
	Path     string `xml:"blob,attr"`
	External bool   `xml:"external,attr"`
	Version  int    `xml:"version,attr"`
}
