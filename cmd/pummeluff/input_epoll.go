//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// runInputReader watches evdev devices and dispatches media keys until ctx
// is canceled. A device error or hangup ends the reader with an error.
func runInputReader(ctx context.Context, devices []string, d *Dispatcher, logger *slog.Logger) error {
	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", dev, err)
		}
		files = append(files, f)
		logger.Info("opened input device", "device", dev)
	}

	// Writing to wakeFd interrupts epoll_wait on shutdown.
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("eventfd: %w", err)
	}
	defer unix.Close(wakeFd)

	events := make(chan inputEvent, 64)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		readInputEventsEpoll(files, wakeFd, events, readErr)
	}()

	wake := func() {
		var one [8]byte
		one[0] = 1
		_, _ = unix.Write(wakeFd, one[:])
		// Drain so a reader blocked on a full channel can observe the wake.
		for {
			select {
			case <-readerDone:
				return
			case <-events:
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			wake()
			return nil
		case err := <-readErr:
			<-readerDone
			return err
		case ev := <-events:
			handleInputEvent(ev, d, logger)
		}
	}
}

// readInputEventsEpoll reads from multiple input devices using one epoll
// set. It returns when wakeFd becomes readable or a device fails.
func readInputEventsEpoll(files []*os.File, wakeFd int, events chan<- inputEvent, readErr chan<- error) {
	if len(files) == 0 {
		readErr <- fmt.Errorf("no input devices provided")
		return
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		readErr <- fmt.Errorf("epoll_create1: %w", err)
		return
	}
	defer unix.Close(epfd)

	fdToFile := make(map[int]*os.File)
	for _, f := range files {
		fdToFile[int(f.Fd())] = f
	}

	for fd := range fdToFile {
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			readErr <- fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
			return
		}
	}
	wakeEv := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakeFd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &wakeEv); err != nil {
		readErr <- fmt.Errorf("epoll_ctl_add wake fd: %w", err)
		return
	}

	const maxEvents = 32
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize(wordSize))

	for {
		n, err := unix.EpollWait(epfd, epollEvents, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			readErr <- fmt.Errorf("epoll_wait: %w", err)
			return
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			if fd == wakeFd {
				return
			}
			f := fdToFile[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				readErr <- fmt.Errorf("device error/hangup: %s (fd=%d)", f.Name(), fd)
				return
			}

			// evdev reads always return whole events.
			nr, err := f.Read(buf)
			if err != nil {
				readErr <- fmt.Errorf("read from %s: %w", f.Name(), err)
				return
			}
			if nr != len(buf) {
				continue
			}

			events <- decodeInputEvent(buf, wordSize)
		}
	}
}
