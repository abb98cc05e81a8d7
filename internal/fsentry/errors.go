package fsentry

import "errors"

// Error kinds surfaced by the File/Chunk storage core. Wrapped with
// fmt.Errorf("...: %w", err) at the point of failure so callers can test
// with errors.Is.
var (
	// ErrUnableToCreateNewFile indicates physical allocation of a new
	// unfinished file failed or was refused.
	ErrUnableToCreateNewFile = errors.New("fsentry: unable to create new file")

	// ErrUnableToOpenFileInReadMode indicates the FilePool could not
	// provide a read handle.
	ErrUnableToOpenFileInReadMode = errors.New("fsentry: unable to open file in read mode")

	// ErrUnableToOpenFileInWriteMode indicates the FilePool could not
	// provide a write handle.
	ErrUnableToOpenFileInWriteMode = errors.New("fsentry: unable to open file in write mode")

	// ErrFileReset indicates a write-open created a fresh physical file
	// where one was expected to already exist; any previously known
	// bytes are void and chunks have been reset to zero.
	ErrFileReset = errors.New("fsentry: file was reset, prior progress is void")

	// ErrIoError indicates a seek/read/write failed against the host
	// filesystem.
	ErrIoError = errors.New("fsentry: io error")

	// ErrChunkOrphaned indicates the chunk's owning file was deleted
	// while the caller held a reference to the chunk.
	ErrChunkOrphaned = errors.New("fsentry: chunk is orphaned")

	// ErrMinimumFreeSpace indicates a new unfinished allocation was
	// refused because it would leave less than the configured minimum
	// free space on the host filesystem.
	ErrMinimumFreeSpace = errors.New("fsentry: insufficient free space for new allocation")
)
