package identity

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/inspectpack/core/pkg/errors"
)

func TestEstablishIdentityResolvesANewJobWithoutWriting(t *testing.T) {
	dir := t.TempDir()
	jobJSON := filepath.Join(dir, "job.json")

	store := New(nil)
	result, err := store.EstablishIdentity(jobJSON, "WO-001", "L1")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Identity.JobID)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "WO-001", result.Identity.WONo)
	assert.True(t, result.IsNew)

	_, statErr := os.Stat(jobJSON)
	assert.True(t, os.IsNotExist(statErr), "job.json must not be written until PersistIdentity is called")
}

func TestPersistIdentityWritesJobJSON(t *testing.T) {
	dir := t.TempDir()
	jobJSON := filepath.Join(dir, "job.json")

	store := New(nil)
	result, err := store.EstablishIdentity(jobJSON, "WO-001", "L1")
	require.NoError(t, err)
	require.NoError(t, store.PersistIdentity(jobJSON, result.Identity))

	assert.FileExists(t, jobJSON)
}

func TestEstablishIdentityIsStableAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	jobJSON := filepath.Join(dir, "job.json")

	store := New(nil)
	first, err := store.EstablishIdentity(jobJSON, "WO-001", "L1")
	require.NoError(t, err)
	require.NoError(t, store.PersistIdentity(jobJSON, first.Identity))

	second, err := store.EstablishIdentity(jobJSON, "WO-001", "L1")
	require.NoError(t, err)

	assert.Equal(t, first.Identity.JobID, second.Identity.JobID)
	assert.False(t, second.IsNew)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEstablishIdentityMismatchRejects(t *testing.T) {
	dir := t.TempDir()
	jobJSON := filepath.Join(dir, "job.json")

	store := New(nil)
	first, err := store.EstablishIdentity(jobJSON, "WO-001", "L1")
	require.NoError(t, err)
	require.NoError(t, store.PersistIdentity(jobJSON, first.Identity))

	_, err = store.EstablishIdentity(jobJSON, "WO-002", "L1")
	require.Error(t, err)
	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.PacketJobMismatch, rejectErr.Code)
}

func TestAcquireAndUnlock(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".job_json.lock")

	lock, err := Acquire(lockDir, 10*time.Millisecond, 5, nil)
	require.NoError(t, err)
	assert.DirExists(t, lockDir)

	require.NoError(t, lock.Unlock())
	_, statErr := os.Stat(lockDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcquireTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".job_json.lock")

	held, err := Acquire(lockDir, 5*time.Millisecond, 3, nil)
	require.NoError(t, err)
	defer held.Unlock()

	_, err = Acquire(lockDir, 5*time.Millisecond, 3, nil)
	require.Error(t, err)
	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.JobJSONLockTimeout, rejectErr.Code)
}

func TestAcquireNeverAutoClearsOrphanedLock(t *testing.T) {
	dir := t.TempDir()
	lockDir := filepath.Join(dir, ".job_json.lock")
	require.NoError(t, os.Mkdir(lockDir, 0o755))
	// A PID astronomically unlikely to be running.
	require.NoError(t, os.WriteFile(filepath.Join(lockDir, "holder.pid"), []byte("999999"), 0o644))

	_, err := Acquire(lockDir, 5*time.Millisecond, 2, nil)
	require.Error(t, err)
	var rejectErr *pkgerrors.RejectError
	require.ErrorAs(t, err, &rejectErr)
	assert.Equal(t, pkgerrors.JobJSONLockTimeout, rejectErr.Code)
	assert.DirExists(t, lockDir)
}
