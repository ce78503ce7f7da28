package audit

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger()
	logger.SetWriter(&buf)

	event := ResourceProvisionedEvent{
		UserID:      "jdoe",
		ClientIP:    "192.168.1.1",
		DatasetID:   "marketing_events",
		Stage:       "prod",
		Region:      "eu-west-1",
		ResourceARN: "arn:aws:s3:::cdh-marketing-events",
		Success:     true,
	}

	logger.Log(event)

	output := buf.String()

	if !strings.Contains(output, "cdh-core-api") {
		t.Error("Expected app name 'cdh-core-api' in output")
	}
	if !strings.Contains(output, "resource-create") {
		t.Error("Expected message ID 'resource-create' in output")
	}
	if !strings.Contains(output, "marketing_events") {
		t.Error("Expected dataset ID in output")
	}
	if !strings.Contains(output, "192.168.1.1") {
		t.Error("Expected client IP in output")
	}
	if !strings.Contains(output, "provisioned resource") {
		t.Error("Expected success message in output")
	}
}

func TestResourceProvisionedEvent(t *testing.T) {
	tests := []struct {
		name      string
		event     ResourceProvisionedEvent
		wantMsg   string
		wantSev   Severity
		wantMsgID string
	}{
		{
			name: "successful provisioning",
			event: ResourceProvisionedEvent{
				UserID:      "jdoe",
				DatasetID:   "marketing_events",
				Stage:       "prod",
				Region:      "eu-west-1",
				ResourceARN: "arn:aws:s3:::cdh-marketing-events",
				Success:     true,
			},
			wantMsg:   "jdoe provisioned resource marketing_events/prod/eu-west-1 as arn:aws:s3:::cdh-marketing-events",
			wantSev:   SeverityInfo,
			wantMsgID: "resource-create",
		},
		{
			name: "failed provisioning",
			event: ResourceProvisionedEvent{
				UserID:       "jdoe",
				DatasetID:    "marketing_events",
				Stage:        "prod",
				Region:       "eu-west-1",
				Success:      false,
				ErrorMessage: "resource is locked",
			},
			wantMsg:   "jdoe tried to provision resource marketing_events/prod/eu-west-1: resource is locked",
			wantSev:   SeverityWarning,
			wantMsgID: "resource-create",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.event.Message(); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.event.Severity(); got != tt.wantSev {
				t.Errorf("Severity() = %v, want %v", got, tt.wantSev)
			}
			if got := tt.event.MessageID(); got != tt.wantMsgID {
				t.Errorf("MessageID() = %q, want %q", got, tt.wantMsgID)
			}
		})
	}
}

func TestResourceDeletedEventStructuredData(t *testing.T) {
	event := ResourceDeletedEvent{
		UserID:      "jdoe",
		ClientIP:    "10.0.0.1",
		DatasetID:   "sales_orders",
		Stage:       "int",
		Region:      "us-east-1",
		ResourceARN: "arn:aws:s3:::cdh-sales-orders",
		Success:     true,
	}

	sd := event.StructuredData()

	if sd[SDIDSubject]["dataset"] != "sales_orders" {
		t.Errorf("subject dataset = %q, want 'sales_orders'", sd[SDIDSubject]["dataset"])
	}
	if sd[SDIDSubject]["arn"] != "arn:aws:s3:::cdh-sales-orders" {
		t.Errorf("subject arn = %q", sd[SDIDSubject]["arn"])
	}
	if sd[SDIDAction]["result"] != "success" {
		t.Errorf("action result = %q, want 'success'", sd[SDIDAction]["result"])
	}
	if sd[SDIDClient]["ip"] != "10.0.0.1" {
		t.Errorf("client ip = %q", sd[SDIDClient]["ip"])
	}
}

func TestLockConflictEvent(t *testing.T) {
	event := LockConflictEvent{
		UserID:    "jdoe",
		ClientIP:  "10.0.0.1",
		LockID:    "marketing_events_resource_prod_eu-west-1",
		Operation: "resource-delete",
	}

	if event.Severity() != SeverityNotice {
		t.Errorf("Severity() = %v, want SeverityNotice", event.Severity())
	}
	if !strings.Contains(event.Message(), "is locked") {
		t.Errorf("Message() = %q, expected lock conflict wording", event.Message())
	}
	sd := event.StructuredData()
	if sd[SDIDAction]["result"] != "conflict" {
		t.Errorf("action result = %q, want 'conflict'", sd[SDIDAction]["result"])
	}
}

func TestFormatStructuredDataEscaping(t *testing.T) {
	sd := map[string]map[string]string{
		SDIDSubject: {
			"dataset": `with"quote]and\slash`,
		},
	}

	got := formatStructuredData(sd)

	if !strings.Contains(got, `\"quote`) {
		t.Errorf("quote not escaped: %s", got)
	}
	if !strings.Contains(got, `\]and`) {
		t.Errorf("bracket not escaped: %s", got)
	}
	if !strings.Contains(got, `\\slash`) {
		t.Errorf("backslash not escaped: %s", got)
	}
}
