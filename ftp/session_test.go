package ftp

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soloftp/soloftp/filesystem"
	"github.com/soloftp/soloftp/netio"
	"github.com/soloftp/soloftp/users"
)

type testRig struct {
	srv  *Server
	ctrl *netio.MemListener
	data *netio.MemListener
	root string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	registry := users.NewLocalUsers()
	registry.Add("esp", "esp")

	root := t.TempDir()
	srv := NewServer(":0", filesystem.NewLocalFS(root), registry)
	srv.ConnectTimeout = 50 * time.Millisecond

	ctrl := netio.NewMemListener()
	data := netio.NewMemListener()
	srv.ctrlListener = ctrl
	srv.dataListener = data
	srv.engine = newTransferEngine(srv.ConnectTimeout, nil)
	return &testRig{srv: srv, ctrl: ctrl, data: data, root: root}
}

func (r *testRig) tick() {
	r.srv.tick(time.Now())
}

// connect injects a control connection and runs the accept tick, returning
// the client end with the greeting already buffered.
func (r *testRig) connect(t *testing.T) *netio.MemConn {
	t.Helper()
	client, server := netio.MemPipe()
	r.ctrl.Inject(server)
	r.tick()
	return client
}

// cmd sends one control line, runs one tick, and returns everything the
// server replied.
func (r *testRig) cmd(t *testing.T, client *netio.MemConn, line string) string {
	t.Helper()
	_, err := client.Write([]byte(line + "\r\n"))
	require.NoError(t, err)
	r.tick()
	return string(drain(client))
}

func (r *testRig) login(t *testing.T) *netio.MemConn {
	t.Helper()
	client := r.connect(t)
	greeting := string(drain(client))
	require.Contains(t, greeting, "220--- Welcome to")
	require.Contains(t, r.cmd(t, client, "USER esp"), "331 OK. Password required")
	require.Contains(t, r.cmd(t, client, "PASS esp"), "230 OK.")
	require.Equal(t, StateReady, r.srv.State())
	return client
}

// dataConn pre-queues a passive data connection, the way a real client
// connects to the advertised port before the transfer command.
func (r *testRig) dataConn() *netio.MemConn {
	client, server := netio.MemPipe()
	r.data.Inject(server)
	return client
}

func TestLoginSequence(t *testing.T) {
	r := newTestRig(t)
	r.login(t)
}

func TestWrongUserDisconnects(t *testing.T) {
	r := newTestRig(t)
	client := r.connect(t)
	drain(client)

	reply := r.cmd(t, client, "USER nobody")
	assert.Contains(t, reply, "530 user not found")

	r.tick()
	assert.Equal(t, StateAwaitingConnection, r.srv.State())
	_, err := client.ReadAvailable(make([]byte, 1))
	assert.Error(t, err, "control connection should be closed")
}

func TestWrongPasswordDisconnects(t *testing.T) {
	r := newTestRig(t)
	client := r.connect(t)
	drain(client)

	require.Contains(t, r.cmd(t, client, "USER esp"), "331")
	reply := r.cmd(t, client, "PASS wrong")
	assert.Contains(t, reply, "530 Login incorrect")
	assert.Nil(t, r.srv.sess)
}

func TestNonUserCommandBeforeLoginDisconnects(t *testing.T) {
	r := newTestRig(t)
	client := r.connect(t)
	drain(client)

	reply := r.cmd(t, client, "NOOP")
	assert.Contains(t, reply, "500 Syntax error")
	assert.Nil(t, r.srv.sess)
}

func TestIdentityTimeoutEmitsSingle530(t *testing.T) {
	r := newTestRig(t)
	client := r.connect(t)
	drain(client)

	late := time.Now().Add(r.srv.IdentTimeout + time.Second)
	r.srv.tick(late)
	r.srv.tick(late)
	r.srv.tick(late)

	out := string(drain(client))
	assert.Equal(t, 1, strings.Count(out, "530 Timeout"))
	assert.Equal(t, StateAwaitingConnection, r.srv.State())
}

func TestIdleTimeoutAfterLogin(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	late := time.Now().Add(r.srv.IdleTimeout + time.Second)
	r.srv.tick(late)
	r.srv.tick(late)

	out := string(drain(client))
	assert.Equal(t, 1, strings.Count(out, "530 Timeout"))
	assert.Nil(t, r.srv.sess)
}

func TestUnknownCommandDoesNotRearmDeadline(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	before := r.srv.sess.deadline
	reply := r.cmd(t, client, "XYZQ")
	assert.Contains(t, reply, "500 Unknown command")
	assert.Equal(t, before, r.srv.sess.deadline)

	reply = r.cmd(t, client, "NOOP")
	assert.Contains(t, reply, "200 Zzz...")
	assert.True(t, r.srv.sess.deadline.After(before))
}

func TestQuitClosesSession(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	reply := r.cmd(t, client, "QUIT")
	assert.Contains(t, reply, "221 Goodbye")
	assert.Nil(t, r.srv.sess)
}

func TestNewConnectionDisplacesClient(t *testing.T) {
	r := newTestRig(t)
	first := r.login(t)

	second := r.connect(t)
	greeting := string(drain(second))
	assert.Contains(t, greeting, "220--- Welcome to")
	assert.Equal(t, StateAwaitingIdentity, r.srv.State())

	_, err := first.ReadAvailable(make([]byte, 1))
	assert.Error(t, err, "displaced client should be cut off")
}

func TestDirectoryLifecycle(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	assert.Contains(t, r.cmd(t, client, "PWD"), `257 "/" is your current directory`)
	assert.Contains(t, r.cmd(t, client, "MKD docs"), `257 "docs" created`)
	assert.Contains(t, r.cmd(t, client, "MKD docs"), `521 "docs" directory already exists`)
	assert.Contains(t, r.cmd(t, client, "CWD docs"), "250 Ok. Current directory is /docs")
	assert.Contains(t, r.cmd(t, client, "PWD"), `257 "/docs" is your current directory`)
	assert.Contains(t, r.cmd(t, client, "CDUP"), "250 Ok. Current directory is /")
	assert.Contains(t, r.cmd(t, client, "CDUP"), "250 Ok. Current directory is /")
	assert.Contains(t, r.cmd(t, client, "RMD docs"), `250 "docs" deleted`)
	assert.Contains(t, r.cmd(t, client, "RMD docs"), "550 File docs not found")
}

func TestCwdToMissingDirectory(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	reply := r.cmd(t, client, "CWD nowhere")
	assert.Contains(t, reply, "550 Can't change directory to nowhere")
	assert.Equal(t, "/", r.srv.sess.cwd)
}

func TestRenameRequiresRnfr(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	reply := r.cmd(t, client, "RNTO other.txt")
	assert.Contains(t, reply, "503 Need RNFR before RNTO")
}

func TestRenameFlow(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "a.txt"), []byte("hi"), 0o644))

	assert.Contains(t, r.cmd(t, client, "RNFR missing.txt"), "550 File missing.txt not found")
	assert.Contains(t, r.cmd(t, client, "RNFR a.txt"), "350 RNFR accepted")
	assert.Contains(t, r.cmd(t, client, "RNTO b.txt"), "250 File successfully renamed or moved")
	assert.FileExists(t, filepath.Join(r.root, "b.txt"))

	// The pending source is consumed; a second RNTO is out of sequence.
	assert.Contains(t, r.cmd(t, client, "RNTO c.txt"), "503 Need RNFR before RNTO")
}

func TestRenameToExistingTarget(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "a.txt"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "b.txt"), []byte("b"), 0o644))

	require.Contains(t, r.cmd(t, client, "RNFR a.txt"), "350")
	assert.Contains(t, r.cmd(t, client, "RNTO b.txt"), "553 b.txt already exists")
	assert.FileExists(t, filepath.Join(r.root, "a.txt"))
}

func TestDeleteAndSize(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "a.txt"), []byte("hello"), 0o644))

	assert.Contains(t, r.cmd(t, client, "SIZE a.txt"), "213 5")
	assert.Contains(t, r.cmd(t, client, "DELE missing"), "550 File missing not found")
	assert.Contains(t, r.cmd(t, client, "DELE a.txt"), "250 Deleted a.txt")
	assert.NoFileExists(t, filepath.Join(r.root, "a.txt"))
}

func TestTypeModeStru(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	assert.Contains(t, r.cmd(t, client, "TYPE A"), "200 TYPE is now ASCII")
	assert.Contains(t, r.cmd(t, client, "TYPE I"), "200 TYPE is now 8-bit binary")
	assert.Contains(t, r.cmd(t, client, "TYPE E"), "504 Unknown TYPE")
	assert.Contains(t, r.cmd(t, client, "MODE S"), "200 S Ok")
	assert.Contains(t, r.cmd(t, client, "MODE B"), "504")
	assert.Contains(t, r.cmd(t, client, "STRU F"), "200 F Ok")
	assert.Contains(t, r.cmd(t, client, "STRU R"), "504")
}

func TestFeatAndSiteAndMdtm(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	feat := r.cmd(t, client, "FEAT")
	assert.Contains(t, feat, "211-Extensions supported:")
	assert.Contains(t, feat, " MLSD")
	assert.Contains(t, feat, " SIZE")
	assert.Contains(t, feat, "211 End.")

	assert.Contains(t, r.cmd(t, client, "SITE FREE"), "500 Unknown SITE command FREE")
	assert.Contains(t, r.cmd(t, client, "MDTM a.txt"), "550 Unable to retrieve time")
}

func TestPortParsing(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	assert.Contains(t, r.cmd(t, client, "PORT 10,0,0,1,195,80"), "200 PORT command successful")
	assert.False(t, r.srv.sess.data.passive)
	assert.Equal(t, "10.0.0.1:50000", r.srv.sess.data.remoteAddr)

	// A bad parameter leaves the mode untouched.
	assert.Contains(t, r.cmd(t, client, "PORT 10,0,0,1,195"), "501 Can't interpret parameters")
	assert.False(t, r.srv.sess.data.passive)

	assert.Contains(t, r.cmd(t, client, "PASV"), "227 Entering Passive Mode (127,0,0,1,")
	assert.True(t, r.srv.sess.data.passive)
}

func TestPasvClosesLiveDataConnection(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	require.Contains(t, r.cmd(t, client, "PASV"), "227")
	dataClient := r.dataConn()
	_, err := r.srv.sess.data.Establish()
	require.NoError(t, err)

	require.Contains(t, r.cmd(t, client, "PASV"), "227")
	_, err = dataClient.ReadAvailable(make([]byte, 1))
	assert.Error(t, err, "previous data connection should be closed")
	assert.Nil(t, r.srv.sess.data.Conn())
}

func TestListFormats(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	require.NoError(t, os.Mkdir(filepath.Join(r.root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "a.txt"), []byte("hello"), 0o644))

	dataClient := r.dataConn()
	reply := r.cmd(t, client, "LIST")
	assert.Contains(t, reply, "150 Accepted data connection")
	assert.Contains(t, reply, "226 1 matches total", "directories are not counted")
	listing := string(drain(dataClient))
	assert.Contains(t, listing, "+r,s <DIR> docs\r\n")
	assert.Contains(t, listing, "+r,s5,\ta.txt\r\n")

	dataClient = r.dataConn()
	reply = r.cmd(t, client, "NLST")
	assert.Contains(t, reply, "226 2 matches total", "NLST counts every entry")
	listing = string(drain(dataClient))
	assert.Contains(t, listing, "docs\r\n")
	assert.Contains(t, listing, "a.txt\r\n")

	dataClient = r.dataConn()
	reply = r.cmd(t, client, "MLSD")
	assert.Contains(t, reply, "226-options: -a -l")
	assert.Contains(t, reply, "226 1 matches total")
	listing = string(drain(dataClient))
	assert.Contains(t, listing, "Type=dir; docs\r\n")
	assert.Contains(t, listing, "Type=file;Size=5; a.txt\r\n")
}

func TestListWithoutDataConnection(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	reply := r.cmd(t, client, "LIST")
	assert.Contains(t, reply, "425 No data connection")
}

func TestRetrMissingFile(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	assert.Contains(t, r.cmd(t, client, "RETR"), "501 No file name")
	assert.Contains(t, r.cmd(t, client, "RETR nope.txt"), "550 File nope.txt not found")
}

func TestRetrEmptyFile(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "empty.txt"), nil, 0o644))

	dataClient := r.dataConn()
	reply := r.cmd(t, client, "RETR empty.txt")
	assert.Contains(t, reply, "150-Connected to port")
	assert.Contains(t, reply, "150 0 bytes to download")

	r.tick()
	out := string(drain(client))
	assert.Contains(t, out, "226 File successfully transferred")
	assert.Empty(t, drain(dataClient))
}

func TestRetrDeliversContent(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)
	payload := strings.Repeat("soloftp", 1000)
	require.NoError(t, os.WriteFile(filepath.Join(r.root, "big.txt"), []byte(payload), 0o644))

	dataClient := r.dataConn()
	reply := r.cmd(t, client, "RETR big.txt")
	assert.Contains(t, reply, "150 7000 bytes to download")

	for i := 0; i < 10 && r.srv.sess.job != nil; i++ {
		r.tick()
	}
	require.Nil(t, r.srv.sess.job, "transfer never completed")

	assert.Contains(t, string(drain(client)), "226")
	assert.Equal(t, payload, string(drain(dataClient)))
}

func TestStorWritesFile(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	dataClient := r.dataConn()
	reply := r.cmd(t, client, "STOR up.txt")
	assert.Contains(t, reply, "150 Connected to port")

	_, err := dataClient.Write([]byte("uploaded bytes"))
	require.NoError(t, err)
	r.tick()
	dataClient.Close()
	for i := 0; i < 10 && r.srv.sess.job != nil; i++ {
		r.tick()
	}
	require.Nil(t, r.srv.sess.job, "upload never completed")

	assert.Contains(t, string(drain(client)), "226 File successfully transferred")
	content, err := os.ReadFile(filepath.Join(r.root, "up.txt"))
	require.NoError(t, err)
	assert.Equal(t, "uploaded bytes", string(content))
}

func TestStorZeroByteUpload(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	dataClient := r.dataConn()
	require.Contains(t, r.cmd(t, client, "STOR empty.txt"), "150")

	dataClient.Close()
	r.tick()
	require.Nil(t, r.srv.sess.job)

	out := string(drain(client))
	assert.Contains(t, out, "226 File successfully transferred")
	assert.NotContains(t, out, "kbytes/s", "zero-byte upload has no rate line")

	info, err := os.Stat(filepath.Join(r.root, "empty.txt"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestAborDuringUpload(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	dataClient := r.dataConn()
	require.Contains(t, r.cmd(t, client, "STOR up.txt"), "150")
	_, err := dataClient.Write([]byte("partial"))
	require.NoError(t, err)
	r.tick()
	require.NotNil(t, r.srv.sess.job)

	// Mid-transfer the only honored command is ABOR.
	reply := r.cmd(t, client, "ABOR")
	assert.Contains(t, reply, "426 Transfer aborted")
	assert.Contains(t, reply, "226 Data connection closed")
	assert.Nil(t, r.srv.sess.job)
	assert.Nil(t, r.srv.sess.data.Conn())
}

func TestAborWithoutTransfer(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	reply := r.cmd(t, client, "ABOR")
	assert.NotContains(t, reply, "426")
	assert.Contains(t, reply, "226 Data connection closed")
}

func TestCommandsQueuedDuringTransferRunAfterIt(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	dataClient := r.dataConn()
	require.Contains(t, r.cmd(t, client, "STOR up.txt"), "150")

	// NOOP lands while the job is live; it must not be answered yet.
	reply := r.cmd(t, client, "NOOP")
	assert.NotContains(t, reply, "200 Zzz...")

	dataClient.Close()
	r.tick() // finishes the job
	r.tick() // dispatches the queued NOOP
	assert.Contains(t, string(drain(client)), "200 Zzz...")
}

func TestControlDisconnectTearsDownSession(t *testing.T) {
	r := newTestRig(t)
	client := r.login(t)

	client.Close()
	r.tick()
	assert.Nil(t, r.srv.sess)
	r.tick()
	assert.Equal(t, StateAwaitingConnection, r.srv.State())
}
