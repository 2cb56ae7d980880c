// ABOUTME: Gapless streaming playback engine
// ABOUTME: Buffers decoded fragments and schedules them back to back on an output device
// Package playback plays a stream of independently encoded fragments as one
// continuous signal.
//
// A Controller owns one session. Each fragment is decoded outside any lock
// and queued in a bounded Buffer. The Scheduler starts playback once
// StartThreshold blocks are buffered, then places each block on the device
// timeline at max(deviceNow, nextFree) so consecutive blocks join with no
// gap. A look-ahead timer hands the next block to the device before the
// current one ends.
//
// Failures stay local: an undecodable fragment is skipped and its
// neighbours join directly, a full buffer drops the new fragment, and a
// block the device refuses is skipped. Only a device that keeps failing is
// reported to the host, through Config.OnError.
//
// Example:
//
//	dev, _ := output.Open("oto", 48000, 2)
//	ctrl := playback.NewController(dev, playback.DefaultConfig())
//	for frag := range fragments {
//	    ctrl.OnFragmentReceived(frag)
//	}
//	ctrl.StreamComplete()
//	fmt.Println(ctrl.Status().Status.Text)
package playback
