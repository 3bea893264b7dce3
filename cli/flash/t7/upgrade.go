// Copyright (c) 2014-2019 Cesanta Software Limited
// All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package t7

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/juju/errors"
	goversion "github.com/mcuadros/go-version"

	"github.com/cesanta/t7up/cli/dev"
	"github.com/cesanta/t7up/cli/ourutil"
	"github.com/cesanta/t7up/common/fwimage"
	"github.com/cesanta/t7up/common/t7"
	"github.com/cesanta/t7up/version"
)

// UpgradeOpts tunes the non-destructive edges of the pipeline. Zero
// values select the defaults.
type UpgradeOpts struct {
	// EnumGrace is the delay before the first post-reboot enumeration
	// scan and between unsuccessful scans.
	EnumGrace time.Duration
	// EnumTimeout bounds the whole wait for the device to come back.
	// Negative means wait forever.
	EnumTimeout time.Duration
	// Transport to rediscover the device on.
	Transport string
	// UpgraderVersion overrides the version compared against the
	// header's requiredUpgraderVersion. Defaults to this build's.
	UpgraderVersion string
}

const (
	defaultEnumGrace   = 5 * time.Second
	defaultEnumTimeout = 10 * time.Minute
)

func (o *UpgradeOpts) enumGrace() time.Duration {
	if o.EnumGrace <= 0 {
		return defaultEnumGrace
	}
	return o.EnumGrace
}

func (o *UpgradeOpts) enumTimeout() time.Duration {
	if o.EnumTimeout == 0 {
		return defaultEnumTimeout
	}
	return o.EnumTimeout
}

func (o *UpgradeOpts) transport() string {
	if o.Transport == "" {
		return dev.TransportEthernet
	}
	return o.Transport
}

func (o *UpgradeOpts) upgraderVersion() string {
	if o.UpgraderVersion == "" {
		return version.GetVersion()
	}
	return o.UpgraderVersion
}

// checkCompat refuses the image before anything destructive happens.
func checkCompat(img *fwimage.Image, upgraderVersion string) error {
	h := img.Header
	if h.HeaderCode != t7.HeaderCode {
		return errors.Annotatef(ErrInvalidHeaderCode, "got 0x%08x, want 0x%08x",
			h.HeaderCode, t7.HeaderCode)
	}
	if h.IntendedDevice != t7.DeviceTypeT7 && h.IntendedDevice != t7.DeviceTypeT7Legacy {
		return errors.Annotatef(ErrIncorrectDeviceType, "image targets device 0x%08x", h.IntendedDevice)
	}
	if h.ContainedVersionString() != img.DeclaredVersion {
		return errors.Annotatef(ErrIncorrectVersion, "file name says %s, header says %s",
			img.DeclaredVersion, h.ContainedVersionString())
	}
	// Development builds report "latest" and are assumed current.
	if version.LooksLikeVersionNumber(upgraderVersion) &&
		goversion.Compare(h.RequiredUpgraderVersionString(), upgraderVersion, ">") {
		return errors.Annotatef(ErrUpgraderTooOld, "image requires upgrader >= %s, this is %s",
			h.RequiredUpgraderVersionString(), upgraderVersion)
	}
	return nil
}

// restartAndUpgrade asks the device to reboot into the new image and
// closes the handle right away: the device is about to drop off the
// network.
func restartAndUpgrade(ctx context.Context, dc dev.DevConn) error {
	if err := dc.WriteReg(ctx, t7.RegReqFWUpg, t7.ReqFWUpgValue); err != nil {
		return errors.Wrap(err, ErrRebootFailure)
	}
	return errors.Trace(dc.Close())
}

// waitForEnumeration polls the transport until a device with the given
// serial number shows up again, then opens it.
func waitForEnumeration(ctx context.Context, enum dev.Enumerator, serial uint32, opts *UpgradeOpts) (dev.DevConn, error) {
	grace := opts.enumGrace()
	var deadline time.Time
	if t := opts.enumTimeout(); t > 0 {
		deadline = time.Now().Add(t)
	}
	for {
		if err := sleepCtx(ctx, grace); err != nil {
			return nil, errors.Trace(err)
		}
		devs, err := enum.ListAll(ctx, dev.TypeT7, opts.transport())
		if err != nil {
			// The scan races the device's network stack coming up;
			// transient failures here are expected.
			glog.Warningf("Enumeration scan failed: %s", err)
		}
		for _, d := range devs {
			if d.Serial != serial {
				continue
			}
			glog.V(1).Infof("S/N %d is back (at %s)", serial, d.Addr)
			dc, err := enum.OpenByType(ctx, dev.TypeT7, opts.transport(), serial)
			if err != nil {
				return nil, errors.Annotatef(err, "device reappeared but could not be opened")
			}
			return dc, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, errors.Annotatef(ErrEnumerationTimeout, "S/N %d", serial)
		}
		glog.V(1).Infof("S/N %d not found yet, retrying", serial)
	}
}

// checkNewFirmware confirms the rebooted device runs the version we
// just installed.
func checkNewFirmware(ctx context.Context, dc dev.DevConn, img *fwimage.Image) error {
	v, err := dc.ReadName(ctx, t7.RegNameFirmwareVersion)
	if err != nil {
		return errors.Annotatef(err, "failed to read firmware version")
	}
	got := fmt.Sprintf("%.4f", v)
	if got != img.DeclaredVersion {
		return errors.Annotatef(ErrVersionMismatch, "want %s, got %s", img.DeclaredVersion, got)
	}
	return nil
}

// Upgrade runs the whole pipeline against an opened device: gate,
// erase, program, verify, reboot, rediscover, confirm. It takes
// ownership of dc; whatever handle is open when it returns is closed.
//
// A failure after writeImage starts and before checkImageWrite passes
// leaves the device without a bootable firmware. The device's
// bootloader survives that state; rerunning the upgrade from the start
// (the erase is idempotent) is the recovery path — do not skip stages.
func Upgrade(ctx context.Context, dc dev.DevConn, enum dev.Enumerator, img *fwimage.Image, opts *UpgradeOpts) error {
	if opts == nil {
		opts = &UpgradeOpts{}
	}
	cur := dc
	defer func() {
		if cur != nil {
			cur.Close()
		}
	}()

	serial := cur.SerialNumber()
	ourutil.Reportf("Upgrading T7 S/N %d to %s (%d payload bytes)...",
		serial, img.DeclaredVersion, len(img.ImageBytes))

	if err := checkCompat(img, opts.upgraderVersion()); err != nil {
		return errors.Trace(err)
	}

	ourutil.Reportf("Erasing image region (%d pages)...", t7.ImageRegion.Pages)
	if err := eraseImage(ctx, cur); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Erasing header region (%d pages)...", t7.HeaderRegion.Pages)
	if err := eraseHeader(ctx, cur); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Verifying erase...")
	if err := checkErase(ctx, cur); err != nil {
		return errors.Trace(err)
	}

	start := time.Now()
	ourutil.Reportf("Writing image (%d @ 0x%06x)...", len(img.ImageBytes), t7.ImageRegion.Base)
	if err := writeImage(ctx, cur, img); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Writing header (%d @ 0x%06x)...", len(img.HeaderBytes), t7.HeaderRegion.Base)
	if err := writeHeader(ctx, cur, img); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Verifying image...")
	if err := checkImageWrite(ctx, cur, img); err != nil {
		return errors.Trace(err)
	}
	glog.Infof("Programmed and verified %d bytes in %.2f s",
		len(img.ImageBytes), time.Since(start).Seconds())

	ourutil.Reportf("Rebooting into new firmware...")
	if err := restartAndUpgrade(ctx, cur); err != nil {
		return errors.Trace(err)
	}
	cur = nil

	ourutil.Reportf("Waiting for the device to come back...")
	newDC, err := waitForEnumeration(ctx, enum, serial, opts)
	if err != nil {
		return errors.Trace(err)
	}
	cur = newDC

	if err := checkNewFirmware(ctx, cur, img); err != nil {
		return errors.Trace(err)
	}
	ourutil.Reportf("Done, firmware version %s confirmed.", img.DeclaredVersion)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
