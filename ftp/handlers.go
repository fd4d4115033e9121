package ftp

import (
	"fmt"
)

// handlerMap routes a verb to its handler. Handlers send their own replies;
// a returned error only means something worth logging happened on top.
type handlerMap map[Command]func(cmd, arg string) error

func (s *Session) commandTable() handlerMap {
	return handlerMap{
		TYPE: s.TypeCommand,
		MODE: s.ModeCommand,
		STRU: s.StructureCommand,

		PWD:  s.PrintWorkingDirectoryCommand,
		CWD:  s.ChangeDirectoryCommand,
		CDUP: s.ChangeToParentCommand,
		MKD:  s.MakeDirectoryCommand,
		RMD:  s.RemoveDirectoryCommand,

		LIST: s.ListCommand,
		NLST: s.NameListCommand,
		MLSD: s.MachineListCommand,

		RETR: s.RetrieveCommand,
		STOR: s.StoreCommand,
		ABOR: s.AbortCommand,

		DELE: s.DeleteCommand,
		RNFR: s.RenameFromCommand,
		RNTO: s.RenameToCommand,
		SIZE: s.SizeCommand,
		MDTM: s.ModTimeCommand,

		PASV: s.PassiveModeCommand,
		PORT: s.ActiveModeCommand,

		FEAT: s.FeaturesCommand,
		SITE: s.SiteCommand,
		NOOP: s.NoopCommand,
		QUIT: s.CloseCommand,
	}
}

// resolveParam resolves a path argument against the working directory and
// reports the failure to the client itself. The bool is false when the
// calling handler should bail out.
func (s *Session) resolveParam(arg string) (string, bool) {
	name, err := Resolve(arg, s.cwd)
	if err != nil {
		s.reply(StatusSyntaxError, "Command line too long")
		return "", false
	}
	return name, true
}

func (s *Session) TypeCommand(cmd, arg string) error {
	switch arg {
	case "A":
		s.reply(StatusCommandOK, "TYPE is now ASCII")
	case "I":
		s.reply(StatusCommandOK, "TYPE is now 8-bit binary")
	default:
		s.reply(StatusCommandNotImplementedForParam, "Unknown TYPE")
	}
	return nil
}

func (s *Session) ModeCommand(cmd, arg string) error {
	if arg == "S" {
		s.reply(StatusCommandOK, "S Ok")
	} else {
		s.reply(StatusCommandNotImplementedForParam, "Only S(tream) is supported")
	}
	return nil
}

func (s *Session) StructureCommand(cmd, arg string) error {
	if arg == "F" {
		s.reply(StatusCommandOK, "F Ok")
	} else {
		s.reply(StatusCommandNotImplementedForParam, "Only F(ile) is supported")
	}
	return nil
}

func (s *Session) PrintWorkingDirectoryCommand(cmd, arg string) error {
	s.replyf(StatusPathnameCreated, "%q is your current directory", s.cwd)
	return nil
}

func (s *Session) ChangeDirectoryCommand(cmd, arg string) error {
	if arg == "." {
		return s.PrintWorkingDirectoryCommand(cmd, arg)
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	entry, err := s.srv.fs.Stat(name)
	if err != nil || !entry.IsDir {
		s.replyf(StatusFileUnavailable, "Can't change directory to %s", arg)
		return nil
	}
	s.cwd = name
	s.replyf(StatusFileActionOK, "Ok. Current directory is %s", s.cwd)
	return nil
}

func (s *Session) ChangeToParentCommand(cmd, arg string) error {
	parent := Parent(s.cwd)
	if parent != "/" && !s.srv.fs.Exists(parent) {
		parent = "/"
	}
	s.cwd = parent
	s.replyf(StatusFileActionOK, "Ok. Current directory is %s", s.cwd)
	return nil
}

func (s *Session) MakeDirectoryCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No directory name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	if s.srv.fs.Exists(name) {
		s.replyf(StatusDirectoryAlreadyExists, "%q directory already exists", arg)
		return nil
	}
	if err := s.srv.fs.MakeDir(name); err != nil {
		s.replyf(StatusFileUnavailable, "Can't create %q", arg)
		return err
	}
	s.replyf(StatusPathnameCreated, "%q created", arg)
	return nil
}

func (s *Session) RemoveDirectoryCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No directory name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	if !s.srv.fs.Exists(name) {
		s.replyf(StatusFileUnavailable, "File %s not found", arg)
		return nil
	}
	if err := s.srv.fs.RemoveDir(name); err != nil {
		s.replyf(StatusSyntaxErrorInParameters, "Can't delete %q", arg)
		return nil
	}
	s.replyf(StatusFileActionOK, "%q deleted", arg)
	return nil
}

func (s *Session) DeleteCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	if !s.srv.fs.Exists(name) {
		s.replyf(StatusFileUnavailable, "File %s not found", arg)
		return nil
	}
	if err := s.srv.fs.Remove(name); err != nil {
		s.replyf(StatusRequestedFileActionNotTaken, "Can't delete %s", arg)
		return nil
	}
	s.replyf(StatusFileActionOK, "Deleted %s", arg)
	return nil
}

func (s *Session) RenameFromCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	if !s.srv.fs.Exists(name) {
		s.replyf(StatusFileUnavailable, "File %s not found", arg)
		return nil
	}
	s.renameFrom = name
	s.reply(StatusFileActionPending, "RNFR accepted - file exists, ready for destination")
	return nil
}

func (s *Session) RenameToCommand(cmd, arg string) error {
	from := s.renameFrom
	s.renameFrom = ""
	if from == "" {
		s.reply(StatusBadSequenceOfCommands, "Need RNFR before RNTO")
		return nil
	}
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	if s.srv.fs.Exists(name) {
		s.replyf(StatusFileNameNotAllowed, "%s already exists", arg)
		return nil
	}
	if err := s.srv.fs.Rename(from, name); err != nil {
		s.reply(StatusLocalProcessingError, "Rename/move failure")
		return err
	}
	s.reply(StatusFileActionOK, "File successfully renamed or moved")
	return nil
}

func (s *Session) SizeCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	entry, err := s.srv.fs.Stat(name)
	if err != nil {
		s.replyf(StatusRequestedFileActionNotTaken, "Can't open %s", arg)
		return nil
	}
	s.replyf(StatusFileStatus, "%d", entry.Size)
	return nil
}

// ModTimeCommand: the store carries no timestamps, so MDTM always refuses.
func (s *Session) ModTimeCommand(cmd, arg string) error {
	s.reply(StatusFileUnavailable, "Unable to retrieve time")
	return nil
}

func (s *Session) PassiveModeCommand(cmd, arg string) error {
	s.data.SetPassive()
	ip := s.srv.publicIPv4
	port := s.data.Port()
	s.replyf(StatusEnteringPassiveMode, "Entering Passive Mode (%d,%d,%d,%d,%d,%d)",
		ip[0], ip[1], ip[2], ip[3], port/256, port%256)
	return nil
}

func (s *Session) ActiveModeCommand(cmd, arg string) error {
	addr, err := parsePortParam(arg)
	if err != nil {
		// Mode is left untouched on a bad parameter.
		s.reply(StatusSyntaxErrorInParameters, "Can't interpret parameters")
		return nil
	}
	s.data.SetActive(addr)
	s.reply(StatusCommandOK, "PORT command successful")
	return nil
}

func (s *Session) ListCommand(cmd, arg string) error {
	conn, err := s.data.Establish()
	if err != nil {
		s.reply(StatusCantOpenDataConnection, "No data connection")
		return nil
	}
	s.reply(StatusFileStatusOK, "Accepted data connection")
	entries, err := s.srv.fs.List(s.cwd)
	if err != nil {
		s.replyf(StatusFileUnavailable, "Can't open directory %s", s.cwd)
		s.data.Close()
		return err
	}
	files := 0
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(conn, "+r,s <DIR> %s\r\n", e.Name)
		} else {
			fmt.Fprintf(conn, "+r,s%d,\t%s\r\n", e.Size, e.Name)
			files++
		}
	}
	s.replyf(StatusClosingDataConnection, "%d matches total", files)
	s.data.Close()
	return nil
}

// NameListCommand ignores its argument and lists the working directory; the
// count covers every entry, directories included.
func (s *Session) NameListCommand(cmd, arg string) error {
	conn, err := s.data.Establish()
	if err != nil {
		s.reply(StatusCantOpenDataConnection, "No data connection")
		return nil
	}
	s.reply(StatusFileStatusOK, "Accepted data connection")
	entries, err := s.srv.fs.List(s.cwd)
	if err != nil {
		s.replyf(StatusFileUnavailable, "Can't open directory %s", s.cwd)
		s.data.Close()
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(conn, "%s\r\n", e.Name)
	}
	s.replyf(StatusClosingDataConnection, "%d matches total", len(entries))
	s.data.Close()
	return nil
}

func (s *Session) MachineListCommand(cmd, arg string) error {
	conn, err := s.data.Establish()
	if err != nil {
		s.reply(StatusCantOpenDataConnection, "No data connection")
		return nil
	}
	s.reply(StatusFileStatusOK, "Accepted data connection")
	entries, err := s.srv.fs.List(s.cwd)
	if err != nil {
		s.replyf(StatusFileUnavailable, "Can't open directory %s", s.cwd)
		s.data.Close()
		return err
	}
	files := 0
	for _, e := range entries {
		if e.IsDir {
			fmt.Fprintf(conn, "Type=dir; %s\r\n", e.Name)
		} else {
			fmt.Fprintf(conn, "Type=file;Size=%d; %s\r\n", e.Size, e.Name)
			files++
		}
	}
	s.replyCont(StatusClosingDataConnection, "options: -a -l")
	s.replyf(StatusClosingDataConnection, "%d matches total", files)
	s.data.Close()
	return nil
}

func (s *Session) RetrieveCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	entry, err := s.srv.fs.Stat(name)
	if err != nil || entry.IsDir {
		s.replyf(StatusFileUnavailable, "File %s not found", arg)
		return nil
	}
	src, err := s.srv.fs.OpenRead(name)
	if err != nil {
		s.replyf(StatusRequestedFileActionNotTaken, "Can't open %s", arg)
		return err
	}
	if _, err := s.data.Establish(); err != nil {
		src.Close()
		s.reply(StatusCantOpenDataConnection, "No data connection")
		return nil
	}
	s.replyContf(StatusFileStatusOK, "Connected to port %d", s.data.Port())
	s.replyf(StatusFileStatusOK, "%d bytes to download", entry.Size)

	job := &TransferJob{kind: transferDownload, name: name, src: src}
	s.srv.engine.Begin(job)
	s.job = job
	return nil
}

func (s *Session) StoreCommand(cmd, arg string) error {
	if arg == "" {
		s.reply(StatusSyntaxErrorInParameters, "No file name")
		return nil
	}
	name, ok := s.resolveParam(arg)
	if !ok {
		return nil
	}
	dst, err := s.srv.fs.OpenWrite(name)
	if err != nil {
		s.replyf(StatusLocalProcessingError, "Can't open/create %s", arg)
		return err
	}
	if _, err := s.data.Establish(); err != nil {
		dst.Close()
		s.reply(StatusCantOpenDataConnection, "No data connection")
		return nil
	}
	s.replyf(StatusFileStatusOK, "Connected to port %d", s.data.Port())

	job := &TransferJob{kind: transferUpload, name: name, dst: dst}
	s.srv.engine.Begin(job)
	s.job = job
	return nil
}

// AbortCommand tears down whatever transfer machinery is live. With no
// transfer active it still closes the data channel, so the reply sequence
// is 426 then 226 mid-transfer and a bare 226 otherwise.
func (s *Session) AbortCommand(cmd, arg string) error {
	s.abortTransfer()
	s.reply(StatusClosingDataConnection, "Data connection closed")
	return nil
}

func (s *Session) FeaturesCommand(cmd, arg string) error {
	s.replyCont(StatusSystemStatus, "Extensions supported:")
	fmt.Fprintf(s.w, " MLSD\r\n")
	fmt.Fprintf(s.w, " SIZE\r\n")
	s.reply(StatusSystemStatus, "End.")
	return nil
}

func (s *Session) SiteCommand(cmd, arg string) error {
	s.replyf(StatusSyntaxError, "Unknown SITE command %s", arg)
	return nil
}

func (s *Session) NoopCommand(cmd, arg string) error {
	s.reply(StatusCommandOK, "Zzz...")
	return nil
}

func (s *Session) CloseCommand(cmd, arg string) error {
	s.reply(StatusServiceClosingControlConnection, "Goodbye")
	s.quit = true
	return nil
}
