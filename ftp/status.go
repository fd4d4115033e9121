// Package ftp implements a single-client FTP server over an abstract file
// store and abstract byte-stream sockets. The whole protocol runs on one
// cooperative tick loop: one session, one in-flight transfer, no
// goroutine-per-connection fan-out.
package ftp

// StatusCode is a three-digit FTP reply code.
type StatusCode = int

const (
	// Informational codes (1xx)
	StatusFileStatusOK StatusCode = 150 // File status okay; about to open data connection

	// Success codes (2xx)
	StatusCommandOK                       StatusCode = 200 // Command okay
	StatusSystemStatus                    StatusCode = 211 // System status, or system help reply
	StatusFileStatus                      StatusCode = 213 // File status
	StatusServiceReadyForNewUser          StatusCode = 220 // Service ready for new user
	StatusServiceClosingControlConnection StatusCode = 221 // Service closing control connection
	StatusClosingDataConnection           StatusCode = 226 // Closing data connection; requested file action successful
	StatusEnteringPassiveMode             StatusCode = 227 // Entering Passive Mode (h1,h2,h3,h4,p1,p2)
	StatusUserLoggedIn                    StatusCode = 230 // User logged in, proceed
	StatusFileActionOK                    StatusCode = 250 // Requested file action okay, completed
	StatusPathnameCreated                 StatusCode = 257 // "PATHNAME" created

	// Intermediate codes (3xx)
	StatusUserOK            StatusCode = 331 // User name okay, need password
	StatusFileActionPending StatusCode = 350 // Requested file action pending further information

	// Transient negative codes (4xx)
	StatusCantOpenDataConnection          StatusCode = 425 // Can't open data connection
	StatusConnectionClosedTransferAborted StatusCode = 426 // Connection closed; transfer aborted
	StatusRequestedFileActionNotTaken     StatusCode = 450 // Requested file action not taken
	StatusLocalProcessingError            StatusCode = 451 // Requested action aborted: local error in processing

	// Permanent negative codes (5xx)
	StatusSyntaxError                   StatusCode = 500 // Syntax error, command unrecognized
	StatusSyntaxErrorInParameters       StatusCode = 501 // Syntax error in parameters or arguments
	StatusBadSequenceOfCommands         StatusCode = 503 // Bad sequence of commands
	StatusCommandNotImplementedForParam StatusCode = 504 // Command not implemented for that parameter
	StatusDirectoryAlreadyExists        StatusCode = 521 // Directory already exists
	StatusNotLoggedIn                   StatusCode = 530 // Not logged in
	StatusFileUnavailable               StatusCode = 550 // Requested action not taken; file unavailable
	StatusFileNameNotAllowed            StatusCode = 553 // Requested action not taken; file name not allowed
)

var statusText = map[StatusCode]string{
	150: "StatusFileStatusOK",
	200: "StatusCommandOK",
	211: "StatusSystemStatus",
	213: "StatusFileStatus",
	220: "StatusServiceReadyForNewUser",
	221: "StatusServiceClosingControlConnection",
	226: "StatusClosingDataConnection",
	227: "StatusEnteringPassiveMode",
	230: "StatusUserLoggedIn",
	250: "StatusFileActionOK",
	257: "StatusPathnameCreated",
	331: "StatusUserOK",
	350: "StatusFileActionPending",
	425: "StatusCantOpenDataConnection",
	426: "StatusConnectionClosedTransferAborted",
	450: "StatusRequestedFileActionNotTaken",
	451: "StatusLocalProcessingError",
	500: "StatusSyntaxError",
	501: "StatusSyntaxErrorInParameters",
	503: "StatusBadSequenceOfCommands",
	504: "StatusCommandNotImplementedForParam",
	521: "StatusDirectoryAlreadyExists",
	530: "StatusNotLoggedIn",
	550: "StatusFileUnavailable",
	553: "StatusFileNameNotAllowed",
}

// StatusText returns the symbolic name of a reply code, or "" if unknown.
func StatusText(code StatusCode) string {
	return statusText[code]
}

// Command is an FTP verb.
type Command = string

const (
	USER Command = "USER" // Send username
	PASS Command = "PASS" // Send password

	TYPE Command = "TYPE" // Set data transfer type (ASCII/Binary)
	MODE Command = "MODE" // Set data transfer mode (only Stream)
	STRU Command = "STRU" // Set file structure (only File)

	RETR Command = "RETR" // Retrieve a file
	STOR Command = "STOR" // Store a file
	RNFR Command = "RNFR" // Rename from (start the rename)
	RNTO Command = "RNTO" // Rename to (finish the rename)
	ABOR Command = "ABOR" // Abort an active transfer
	DELE Command = "DELE" // Delete a file
	CWD  Command = "CWD"  // Change working directory
	CDUP Command = "CDUP" // Change to parent directory
	MKD  Command = "MKD"  // Make directory
	RMD  Command = "RMD"  // Remove directory

	PWD  Command = "PWD"  // Print working directory
	LIST Command = "LIST" // List directory contents
	NLST Command = "NLST" // Concise list of filenames
	MLSD Command = "MLSD" // Machine-readable directory listing (RFC 3659)
	SIZE Command = "SIZE" // Size of a file
	MDTM Command = "MDTM" // File modification time (RFC 3659)
	FEAT Command = "FEAT" // Supported extensions
	SITE Command = "SITE" // Site-specific commands

	PASV Command = "PASV" // Enter passive mode
	PORT Command = "PORT" // Client-supplied data address (active mode)

	NOOP Command = "NOOP" // Keep the connection alive
	QUIT Command = "QUIT" // Disconnect from the server
)
