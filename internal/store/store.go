package store

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"fleet-command-server/internal/model"
)

var (
	ErrDuplicateName = errors.New("duplicate name")
	ErrDuplicateTag  = errors.New("duplicate tag")
)

// Store is the in-memory record layer: devices, tags, people, pending tag
// requests and the append-only audit, access and syslog logs. The command
// queue keeps its own state; the store only collects its audit trail.
type Store struct {
	mu  sync.RWMutex
	seq int64

	devicesByID    map[int64]model.Device
	deviceIDByName map[string]int64
	deviceIDByKey  map[string]int64

	peopleByID map[string]model.Person
	tagsByUID  map[string]model.Tag

	tagRequests []model.TagRequest
	audit       []model.AuditEntry
	access      []model.AccessLogEntry
	syslog      []model.SyslogEntry
}

func New() *Store {
	return &Store{
		devicesByID:    make(map[int64]model.Device),
		deviceIDByName: make(map[string]int64),
		deviceIDByKey:  make(map[string]int64),
		peopleByID:     make(map[string]model.Person),
		tagsByUID:      make(map[string]model.Tag),
	}
}

func newAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// CreateDevice registers a device under a unique name and generates its
// 64-hex secret key.
func (s *Store) CreateDevice(name string, nowMillis int64) (model.Device, error) {
	if name == "" {
		return model.Device{}, errors.New("missing name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.deviceIDByName[name]; ok {
		return model.Device{}, ErrDuplicateName
	}

	s.seq++
	device := model.Device{
		ID:        s.seq,
		Name:      name,
		APIKey:    newAPIKey(),
		Active:    true,
		CreatedAt: nowMillis,
	}
	s.devicesByID[device.ID] = device
	s.deviceIDByName[name] = device.ID
	s.deviceIDByKey[device.APIKey] = device.ID
	return device, nil
}

func (s *Store) DeviceByID(id int64) (model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	device, ok := s.devicesByID[id]
	return device, ok
}

func (s *Store) DeviceByName(name string) (model.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.deviceIDByName[name]
	if !ok {
		return model.Device{}, false
	}
	return s.devicesByID[id], true
}

func (s *Store) DeviceByKey(key string) (model.Device, bool) {
	if key == "" {
		return model.Device{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.deviceIDByKey[key]
	if !ok {
		return model.Device{}, false
	}
	return s.devicesByID[id], true
}

// DeviceByIdentifier resolves an all-digit identifier as an id and
// anything else as a name, matching how devices address themselves.
func (s *Store) DeviceByIdentifier(identifier string) (model.Device, bool) {
	if identifier == "" {
		return model.Device{}, false
	}
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		return s.DeviceByID(id)
	}
	return s.DeviceByName(identifier)
}

func (s *Store) SetDeviceActive(id int64, active bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devicesByID[id]
	if !ok {
		return false
	}
	device.Active = active
	s.devicesByID[id] = device
	return true
}

// UpdateDeviceHeartbeat stamps the device's liveness fields from a status
// report.
func (s *Store) UpdateDeviceHeartbeat(id int64, ip string, wifi *int, battery, deviceTime string, nowMillis int64) (model.Device, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devicesByID[id]
	if !ok {
		return model.Device{}, false
	}
	device.LastSeenAt = nowMillis
	device.IPAddress = ip
	if wifi != nil {
		device.WifiSignal = wifi
	}
	if battery != "" {
		device.BatteryStatus = battery
	}
	if deviceTime != "" {
		device.DeviceTime = deviceTime
	}
	s.devicesByID[id] = device
	return device, true
}

func (s *Store) ListDevices() []model.Device {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Device, 0, len(s.devicesByID))
	for id := int64(1); id <= s.seq; id++ {
		if device, ok := s.devicesByID[id]; ok {
			result = append(result, device)
		}
	}
	return result
}

func (s *Store) CreatePerson(fullName, email, notes string, nowMillis int64) model.Person {
	s.mu.Lock()
	defer s.mu.Unlock()

	person := model.Person{
		ID:        uuid.NewString(),
		FullName:  fullName,
		Email:     email,
		Notes:     notes,
		CreatedAt: nowMillis,
	}
	s.peopleByID[person.ID] = person
	return person
}

func (s *Store) PersonByID(id string) (model.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	person, ok := s.peopleByID[id]
	return person, ok
}

func (s *Store) CreateTag(uid, ownerID string, allowed bool, description string, nowMillis int64) (model.Tag, error) {
	if uid == "" {
		return model.Tag{}, errors.New("missing uid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tagsByUID[uid]; ok {
		return model.Tag{}, ErrDuplicateTag
	}
	tag := model.Tag{
		UID:         uid,
		OwnerID:     ownerID,
		Allowed:     allowed,
		Description: description,
		CreatedAt:   nowMillis,
	}
	s.tagsByUID[uid] = tag
	return tag, nil
}

func (s *Store) TagByUID(uid string) (model.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tag, ok := s.tagsByUID[uid]
	return tag, ok
}

func (s *Store) TouchTag(uid string, nowMillis int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tag, ok := s.tagsByUID[uid]
	if !ok {
		return
	}
	tag.LastUsedAt = nowMillis
	s.tagsByUID[uid] = tag
}

func (s *Store) CreateTagRequest(kind string, deviceID int64, tagUID, description, reason string, nowMillis int64) model.TagRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := model.TagRequest{
		ID:          uuid.NewString(),
		Kind:        kind,
		DeviceID:    deviceID,
		TagUID:      tagUID,
		Description: description,
		Reason:      reason,
		Status:      "pending",
		CreatedAt:   nowMillis,
	}
	s.tagRequests = append(s.tagRequests, req)
	return req
}

func (s *Store) ListTagRequests() []model.TagRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TagRequest, len(s.tagRequests))
	copy(out, s.tagRequests)
	return out
}

// Record appends a command lifecycle audit entry. Satisfies the queue's
// audit sink.
func (s *Store) Record(entry model.AuditEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, entry)
}

// AuditLog returns up to limit entries, newest first. deviceID 0 means all
// devices.
func (s *Store) AuditLog(deviceID int64, limit int) []model.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.AuditEntry, 0, limit)
	for i := len(s.audit) - 1; i >= 0 && len(result) < limit; i-- {
		if deviceID != 0 && s.audit[i].DeviceID != deviceID {
			continue
		}
		result = append(result, s.audit[i])
	}
	return result
}

func (s *Store) RecordAccess(deviceID int64, tagUID, owner string, granted bool, details string, nowMillis int64) model.AccessLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := model.AccessLogEntry{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		TagUID:    tagUID,
		Owner:     owner,
		Granted:   granted,
		Details:   details,
		CreatedAt: nowMillis,
	}
	s.access = append(s.access, entry)
	return entry
}

func (s *Store) AccessLog() []model.AccessLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AccessLogEntry, len(s.access))
	copy(out, s.access)
	return out
}

func (s *Store) RecordSyslog(entry model.SyslogEntry) model.SyslogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	s.syslog = append(s.syslog, entry)
	return entry
}

func (s *Store) SyslogEntries() []model.SyslogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SyslogEntry, len(s.syslog))
	copy(out, s.syslog)
	return out
}
