package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/tez-capital/cryptoblob"
	"github.com/tez-capital/cryptoblob/keyring"
	"github.com/tez-capital/cryptoblob/storage/localfile"
)

func blobBackend(path string) (*localfile.Backend, string, error) {
	dir := filepath.Dir(path)
	if dir == "" {
		dir = "."
	}
	b, err := localfile.New(dir)
	if err != nil {
		return nil, "", err
	}
	return b, filepath.Base(path), nil
}

func loadBlob(ctx context.Context, path string) (*cryptoblob.CryptoBlob, error) {
	backend, loc, err := blobBackend(path)
	if err != nil {
		return nil, err
	}
	raw, err := backend.Load(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", path, err)
	}
	return cryptoblob.Load(raw)
}

func storeBlob(ctx context.Context, path string, cb *cryptoblob.CryptoBlob) error {
	backend, loc, err := blobBackend(path)
	if err != nil {
		return err
	}
	dumped := cryptoblob.Dump(cb)
	return backend.Modify(ctx, loc, func([]byte) ([]byte, error) { return dumped, nil })
}

func cmdPack() *cli.Command {
	return &cli.Command{
		Name:      "pack",
		Usage:     "pack a source directory tree into a blob",
		ArgsUsage: "<src-dir> <blob-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "master-key-file", Usage: "path to the hex-encoded master key (created if absent); falls back to --config's master_key_file"},
			&cli.StringFlag{Name: "keyring-dir", Usage: "if set, newly minted tenant reader keys are enrolled here; falls back to --config's keyring_dir"},
			&cli.StringSliceFlag{Name: "revoke", Usage: "tenant names to drop from continuity; their next key_id starts fresh"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			log := loggerFrom(ctx)
			fc := fileConfigFrom(ctx)
			args := c.Args().Slice()
			if len(args) != 2 {
				return fmt.Errorf("usage: pack <src-dir> <blob-file>")
			}
			srcDir, blobFile := args[0], args[1]

			masterKeyFile := flagOrConfig(c, "master-key-file", fc.MasterKeyFile)
			if masterKeyFile == "" {
				return fmt.Errorf("pack: --master-key-file (or config's master_key_file) is required")
			}
			masterKey, err := loadOrCreateMasterKey(masterKeyFile)
			if err != nil {
				return err
			}

			var existing []cryptoblob.TenantKeys
			var maxID int32
			if prev, err := loadBlob(ctx, blobFile); err == nil {
				mm, err := cryptoblob.UnsealMaster(prev, masterKey)
				if err != nil {
					return fmt.Errorf("pack: existing blob present but master key cannot open it: %w", err)
				}
				maxID = prev.MaxID
				existing = cryptoblob.GetTenantsKeys(mm)
			}

			revoke := make(map[string]struct{})
			for _, name := range c.StringSlice("revoke") {
				revoke[name] = struct{}{}
			}
			if len(revoke) > 0 {
				kept := existing[:0:0]
				for _, tk := range existing {
					if _, drop := revoke[tk.Name]; !drop {
						kept = append(kept, tk)
					}
				}
				existing = kept
			}

			result, err := cryptoblob.Pack(srcDir, masterKey, existing, maxID)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}

			if err := storeBlob(ctx, blobFile, result.Blob); err != nil {
				return fmt.Errorf("pack: write blob: %w", err)
			}
			log.Info("packed blob", "src", srcDir, "blob", blobFile, "max_id", result.Blob.MaxID, "tenants", len(result.TenantsKeys))

			var ring *keyring.KeyRing
			var masterPassword []byte
			if dir := flagOrConfig(c, "keyring-dir", fc.KeyringDir); dir != "" {
				store, err := keyring.NewFileStore(dir)
				if err != nil {
					return err
				}
				if _, statErr := os.Stat(filepath.Join(dir, "master.json")); statErr != nil {
					masterPassword, err = obtainPasswordConfirmed("Keyring master passphrase")
				} else {
					masterPassword, err = obtainPassword("Keyring master passphrase")
				}
				if err != nil {
					return err
				}
				defer keyring.MemoryWipe(masterPassword)
				ring = keyring.New(log, store)
				if _, statErr := os.Stat(filepath.Join(dir, "master.json")); statErr != nil {
					if err := store.InitMaster(); err != nil && !errors.Is(err, keyring.ErrAlreadyInitialized) {
						return err
					}
				}
			}

			for _, tk := range result.TenantsKeys {
				rendered := cryptoblob.FormatTenantReaderKey(tk.KeyID, tk.ReaderKey)
				fmt.Printf("tenant=%s key_id=%d reader_key=%s\n", tk.Name, tk.KeyID, rendered)
				if ring != nil {
					if err := ring.Enroll(tk.Name, tk.KeyID, tk.ReaderKey, masterPassword); err != nil && !errors.Is(err, keyring.ErrEntryExists) {
						log.Warn("keyring enroll failed", "tenant", tk.Name, "err", err)
					}
				}
			}
			return nil
		},
	}
}

func cmdUnpackMaster() *cli.Command {
	return &cli.Command{
		Name:      "unpack-master",
		Usage:     "decrypt and reconstruct the full tree from a blob using the master key",
		ArgsUsage: "<blob-file> <dest-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "master-key-file", Usage: "falls back to --config's master_key_file"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			fc := fileConfigFrom(ctx)
			args := c.Args().Slice()
			if len(args) != 2 {
				return fmt.Errorf("usage: unpack-master <blob-file> <dest-dir>")
			}
			blobFile, dest := args[0], args[1]

			masterKeyFile := flagOrConfig(c, "master-key-file", fc.MasterKeyFile)
			if masterKeyFile == "" {
				return fmt.Errorf("unpack-master: --master-key-file (or config's master_key_file) is required")
			}
			masterKey, err := loadOrCreateMasterKey(masterKeyFile)
			if err != nil {
				return err
			}
			cb, err := loadBlob(ctx, blobFile)
			if err != nil {
				return err
			}
			mm, err := cryptoblob.UnsealMaster(cb, masterKey)
			if err != nil {
				return fmt.Errorf("unpack-master: %w", err)
			}
			if err := cryptoblob.WriteoutMaster(dest, cb, mm); err != nil {
				return fmt.Errorf("unpack-master: writeout: %w", err)
			}
			loggerFrom(ctx).Info("unpacked master", "blob", blobFile, "dest", dest)
			return nil
		},
	}
}

func cmdUnpackTenant() *cli.Command {
	return &cli.Command{
		Name:      "unpack-tenant",
		Usage:     "decrypt and reconstruct a tenant's own subtree from a blob",
		ArgsUsage: "<blob-file> <dest-dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reader-key", Usage: `"<key_id>:<reader_key_hex>"`},
			&cli.StringFlag{Name: "tenant", Usage: "tenant name to unlock from --keyring-dir instead of --reader-key"},
			&cli.StringFlag{Name: "keyring-dir", Usage: "falls back to --config's keyring_dir"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			fc := fileConfigFrom(ctx)
			args := c.Args().Slice()
			if len(args) != 2 {
				return fmt.Errorf("usage: unpack-tenant <blob-file> <dest-dir>")
			}
			blobFile, dest := args[0], args[1]
			keyringDir := flagOrConfig(c, "keyring-dir", fc.KeyringDir)

			var keyID int32
			var readerKey []byte
			switch {
			case c.String("reader-key") != "":
				var err error
				keyID, readerKey, err = cryptoblob.ParseTenantReaderKey(c.String("reader-key"))
				if err != nil {
					return err
				}
			case c.String("tenant") != "" && keyringDir != "":
				store, err := keyring.NewFileStore(keyringDir)
				if err != nil {
					return err
				}
				pass, err := obtainPassword("Keyring master passphrase")
				if err != nil {
					return err
				}
				defer keyring.MemoryWipe(pass)
				ring := keyring.New(loggerFrom(ctx), store)
				u, err := ring.Unlock(c.String("tenant"), pass)
				if err != nil {
					return err
				}
				keyID, readerKey = u.KeyID, u.ReaderKey
			default:
				return fmt.Errorf("unpack-tenant: need --reader-key or --tenant with --keyring-dir")
			}

			cb, err := loadBlob(ctx, blobFile)
			if err != nil {
				return err
			}
			tm, err := cryptoblob.OpenTenant(cb, keyID, readerKey)
			if err != nil {
				return fmt.Errorf("unpack-tenant: %w", err)
			}
			if err := cryptoblob.WriteoutTenant(dest, cb, tm); err != nil {
				return fmt.Errorf("unpack-tenant: writeout: %w", err)
			}
			loggerFrom(ctx).Info("unpacked tenant", "blob", blobFile, "dest", dest, "key_id", keyID)
			return nil
		},
	}
}

func cmdInfo() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print a blob's version, counters, and fingerprint",
		ArgsUsage: "<blob-file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			args := c.Args().Slice()
			if len(args) != 1 {
				return fmt.Errorf("usage: info <blob-file>")
			}
			backend, loc, err := blobBackend(args[0])
			if err != nil {
				return err
			}
			raw, err := backend.Load(ctx, loc)
			if err != nil {
				return err
			}
			cb, err := cryptoblob.Load(raw)
			if err != nil {
				return err
			}

			info := struct {
				Version     int32  `json:"version"`
				MaxID       int32  `json:"max_id"`
				Partitions  int    `json:"partitions"`
				Tenants     int    `json:"tenants"`
				SizeBytes   int    `json:"size_bytes"`
				Fingerprint string `json:"fingerprint"`
			}{
				Version:     cb.Version,
				MaxID:       cb.MaxID,
				Partitions:  len(cb.XPartitions),
				Tenants:     len(cb.XTenants),
				SizeBytes:   len(raw),
				Fingerprint: fingerprint(raw),
			}

			if !isTTY(os.Stdout) {
				return json.NewEncoder(os.Stdout).Encode(info)
			}
			fmt.Printf("version:     %d\n", info.Version)
			fmt.Printf("max_id:      %d\n", info.MaxID)
			fmt.Printf("partitions:  %d\n", info.Partitions)
			fmt.Printf("tenants:     %d\n", info.Tenants)
			fmt.Printf("size:        %d bytes\n", info.SizeBytes)
			fmt.Printf("fingerprint: %s\n", info.Fingerprint)
			return nil
		},
	}
}

func cmdKeyring() *cli.Command {
	return &cli.Command{
		Name:  "keyring",
		Usage: "manage the local tenant reader-key store",
		Commands: []*cli.Command{
			{
				Name:      "init",
				Usage:     "initialize a new keyring directory",
				ArgsUsage: "<keyring-dir>",
				Action: func(ctx context.Context, c *cli.Command) error {
					args := c.Args().Slice()
					if len(args) != 1 {
						return fmt.Errorf("usage: keyring init <keyring-dir>")
					}
					store, err := keyring.NewFileStore(args[0])
					if err != nil {
						return err
					}
					if err := store.InitMaster(); err != nil {
						return err
					}
					fmt.Println("keyring initialized:", args[0])
					return nil
				},
			},
			{
				Name:      "enroll",
				Usage:     "manually store a tenant's reader key",
				ArgsUsage: "<keyring-dir> <tenant> <reader-key-textual>",
				Action: func(ctx context.Context, c *cli.Command) error {
					args := c.Args().Slice()
					if len(args) != 3 {
						return fmt.Errorf("usage: keyring enroll <keyring-dir> <tenant> <reader-key-textual>")
					}
					keyID, readerKey, err := cryptoblob.ParseTenantReaderKey(args[2])
					if err != nil {
						return err
					}
					store, err := keyring.NewFileStore(args[0])
					if err != nil {
						return err
					}
					pass, err := obtainPassword("Keyring master passphrase")
					if err != nil {
						return err
					}
					defer keyring.MemoryWipe(pass)
					ring := keyring.New(loggerFrom(ctx), store)
					return ring.Enroll(args[1], keyID, readerKey, pass)
				},
			},
			{
				Name:      "list",
				Usage:     "list enrolled tenants",
				ArgsUsage: "<keyring-dir>",
				Action: func(ctx context.Context, c *cli.Command) error {
					args := c.Args().Slice()
					if len(args) != 1 {
						return fmt.Errorf("usage: keyring list <keyring-dir>")
					}
					store, err := keyring.NewFileStore(args[0])
					if err != nil {
						return err
					}
					names, err := store.List()
					if err != nil {
						return err
					}
					if !isTTY(os.Stdout) {
						return json.NewEncoder(os.Stdout).Encode(names)
					}
					if len(names) == 0 {
						fmt.Println("no tenants enrolled.")
						return nil
					}
					fmt.Println(strings.Join(names, "\n"))
					return nil
				},
			},
			{
				Name:      "forget",
				Usage:     "remove a tenant's stored reader key",
				ArgsUsage: "<keyring-dir> <tenant>",
				Action: func(ctx context.Context, c *cli.Command) error {
					args := c.Args().Slice()
					if len(args) != 2 {
						return fmt.Errorf("usage: keyring forget <keyring-dir> <tenant>")
					}
					store, err := keyring.NewFileStore(args[0])
					if err != nil {
						return err
					}
					ring := keyring.New(loggerFrom(ctx), store)
					if err := ring.Remove(args[1]); err != nil {
						return err
					}
					fmt.Println("removed:", args[1])
					return nil
				},
			},
		},
	}
}
