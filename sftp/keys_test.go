package sftp

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGeneratesRSAKeys(t *testing.T) {
	for _, bitSize := range []int{2048, 3072} {
		t.Run(fmt.Sprintf("RSAKeySize%d", bitSize), func(t *testing.T) {
			privateKey, publicKey, err := GeneratesRSAKeys(bitSize)
			require.NoError(t, err)
			assert.NotEmpty(t, publicKey)

			_, err = ssh.ParsePrivateKey(privateKey)
			assert.NoError(t, err, "the ssh server must accept the generated key")
		})
	}
}

func TestGeneratesRSAKeysRefusesOddSizes(t *testing.T) {
	_, _, err := GeneratesRSAKeys(1024)
	assert.Error(t, err)
}

func TestGeneratesED25519Keys(t *testing.T) {
	privateKey, publicKey, err := GeneratesED25519Keys()
	require.NoError(t, err)
	assert.NotEmpty(t, publicKey)

	_, err = ssh.ParsePrivateKey(privateKey)
	assert.NoError(t, err)
}
