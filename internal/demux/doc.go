// Package demux opens media containers and splits them into packets of
// independent elementary streams.
//
// A [Container] is opened from a path ([Open]) or from a custom
// [source.ByteSource] ([OpenSource]). The container format is chosen by
// probing the first bytes of input against the registered [Format]
// implementations; MPEG-TS, MP4, FLV, YUV4MPEG2 and WAV are built in and
// further formats can be added with [Register].
//
// Packets are read into a caller-owned [Packet] that is reused across reads
// and consumed incrementally by decoders.
package demux
