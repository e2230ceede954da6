// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package reschedule

import "time"

// ForTry returns the records belonging to try, preserving order.
func ForTry(records []Record, try int) []Record {
	var result []Record
	for _, record := range records {
		if record.TryNumber == try {
			result = append(result, record)
		}
	}
	return result
}

// StartedAt returns the start of try's poll cycle: the StartDate of the
// first record for that try, or fallback when the try has not been
// rescheduled yet.
func StartedAt(records []Record, try int, fallback time.Time) time.Time {
	for _, record := range records {
		if record.TryNumber == try {
			return record.StartDate
		}
	}
	return fallback
}

// Latest returns the most recently appended record.
func Latest(records []Record) (Record, bool) {
	if len(records) == 0 {
		return Record{}, false
	}
	return records[len(records)-1], true
}

// ReadyAt reports whether an up_for_reschedule instance with the given
// records may be invoked at now. An instance with no records is always
// ready.
func ReadyAt(records []Record, now time.Time) bool {
	latest, ok := Latest(records)
	if !ok {
		return true
	}
	return !now.Before(latest.RescheduleDate)
}
