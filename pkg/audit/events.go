package audit

import "fmt"

// ResourceProvisionedEvent represents a resource creation audit event
type ResourceProvisionedEvent struct {
	UserID       string
	ClientIP     string
	DatasetID    string
	Stage        string
	Region       string
	ResourceARN  string
	Success      bool
	ErrorMessage string
}

func (e ResourceProvisionedEvent) MessageID() string {
	return "resource-create"
}

func (e ResourceProvisionedEvent) Message() string {
	tuple := fmt.Sprintf("%s/%s/%s", e.DatasetID, e.Stage, e.Region)
	if e.Success {
		return fmt.Sprintf("%s provisioned resource %s as %s", e.UserID, tuple, e.ResourceARN)
	}
	msg := fmt.Sprintf("%s tried to provision resource %s", e.UserID, tuple)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e ResourceProvisionedEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e ResourceProvisionedEvent) Facility() int {
	return FacilityAuthPriv
}

func (e ResourceProvisionedEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"dataset": e.DatasetID,
			"stage":   e.Stage,
			"region":  e.Region,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "create",
		},
	}
	if e.ResourceARN != "" {
		sd[SDIDSubject]["arn"] = e.ResourceARN
	}
	if e.Success {
		sd[SDIDAction]["result"] = "success"
	} else {
		sd[SDIDAction]["result"] = "failure"
	}
	return sd
}

// ResourceDeletedEvent represents a resource deletion audit event
type ResourceDeletedEvent struct {
	UserID       string
	ClientIP     string
	DatasetID    string
	Stage        string
	Region       string
	ResourceARN  string
	Success      bool
	ErrorMessage string
}

func (e ResourceDeletedEvent) MessageID() string {
	return "resource-delete"
}

func (e ResourceDeletedEvent) Message() string {
	tuple := fmt.Sprintf("%s/%s/%s", e.DatasetID, e.Stage, e.Region)
	if e.Success {
		return fmt.Sprintf("%s deleted resource %s", e.UserID, tuple)
	}
	msg := fmt.Sprintf("%s tried to delete resource %s", e.UserID, tuple)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e ResourceDeletedEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e ResourceDeletedEvent) Facility() int {
	return FacilityAuthPriv
}

func (e ResourceDeletedEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"dataset": e.DatasetID,
			"stage":   e.Stage,
			"region":  e.Region,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "delete",
		},
	}
	if e.ResourceARN != "" {
		sd[SDIDSubject]["arn"] = e.ResourceARN
	}
	if e.Success {
		sd[SDIDAction]["result"] = "success"
	} else {
		sd[SDIDAction]["result"] = "failure"
	}
	return sd
}

// ReadAccessUpdatedEvent represents a read access change audit event
type ReadAccessUpdatedEvent struct {
	UserID       string
	ClientIP     string
	DatasetID    string
	Stage        string
	Region       string
	AccountIDs   []string
	Success      bool
	ErrorMessage string
}

func (e ReadAccessUpdatedEvent) MessageID() string {
	return "read-access"
}

func (e ReadAccessUpdatedEvent) Message() string {
	tuple := fmt.Sprintf("%s/%s/%s", e.DatasetID, e.Stage, e.Region)
	if e.Success {
		return fmt.Sprintf("%s updated read access for %s to %d accounts", e.UserID, tuple, len(e.AccountIDs))
	}
	msg := fmt.Sprintf("%s tried to update read access for %s", e.UserID, tuple)
	if e.ErrorMessage != "" {
		msg += ": " + e.ErrorMessage
	}
	return msg
}

func (e ReadAccessUpdatedEvent) Severity() Severity {
	if e.Success {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e ReadAccessUpdatedEvent) Facility() int {
	return FacilityAuthPriv
}

func (e ReadAccessUpdatedEvent) StructuredData() map[string]map[string]string {
	sd := map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"dataset": e.DatasetID,
			"stage":   e.Stage,
			"region":  e.Region,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": "update-read-access",
			"accounts":  fmt.Sprintf("%d", len(e.AccountIDs)),
		},
	}
	if e.Success {
		sd[SDIDAction]["result"] = "success"
	} else {
		sd[SDIDAction]["result"] = "failure"
	}
	return sd
}

// LockConflictEvent represents a rejected operation on a locked entity
type LockConflictEvent struct {
	UserID    string
	ClientIP  string
	LockID    string
	Operation string
}

func (e LockConflictEvent) MessageID() string {
	return "lock-conflict"
}

func (e LockConflictEvent) Message() string {
	return fmt.Sprintf("%s was rejected from %s: %s is locked", e.UserID, e.Operation, e.LockID)
}

func (e LockConflictEvent) Severity() Severity {
	return SeverityNotice
}

func (e LockConflictEvent) Facility() int {
	return FacilityAuthPriv
}

func (e LockConflictEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDAuth: {
			"user": e.UserID,
		},
		SDIDSubject: {
			"lock": e.LockID,
		},
		SDIDClient: {
			"ip": e.ClientIP,
		},
		SDIDAction: {
			"operation": e.Operation,
			"result":    "conflict",
		},
	}
}
