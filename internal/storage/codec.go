package storage

import (
	"encoding/json"
	"errors"

	"chiasma/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeRecords(records []model.IndividualRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeRecords(data []byte) ([]model.IndividualRecord, error) {
	var records []model.IndividualRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func EncodeFounders(s model.FounderSnapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeFounders(data []byte) (model.FounderSnapshot, error) {
	var snapshot model.FounderSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.FounderSnapshot{}, err
	}
	if err := checkVersion(snapshot.VersionedRecord); err != nil {
		return model.FounderSnapshot{}, err
	}
	return snapshot, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
