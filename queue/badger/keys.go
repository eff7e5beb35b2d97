package badger

import "fmt"

// Key prefixes for different data types
const (
	lanePrefix    = "lane"
	recordPrefix  = "jobrec"
	laneSeqPrefix = "laneseq"
)

// makeLaneItemKey generates a key for one queued descriptor within a lane.
// The zero-padded sequence keeps lexicographic iteration order equal to
// FIFO enqueue order.
func makeLaneItemKey(lane string, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s:%s:%020d", lanePrefix, lane, seq))
}

// makeLaneScanPrefix generates the iteration prefix for a lane.
func makeLaneScanPrefix(lane string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", lanePrefix, lane))
}

// makeRecordKey generates the key for a job record by id.
func makeRecordKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", recordPrefix, id))
}

// makeRecordScanPrefix generates the iteration prefix for all job records.
func makeRecordScanPrefix() []byte {
	return []byte(recordPrefix + ":")
}

// makeLaneSeqKey generates the sequence name for a lane.
func makeLaneSeqKey(lane string) string {
	return fmt.Sprintf("%s:%s", laneSeqPrefix, lane)
}
