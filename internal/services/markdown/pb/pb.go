// Package pb holds the wire messages for the markdown conversion service.
// The structs mirror markdown.proto; field tags drive proto3 encoding.
package pb

import "fmt"

type ConversionRequest struct {
	HtmlContent string            `protobuf:"bytes,1,opt,name=html_content,json=htmlContent,proto3" json:"html_content,omitempty"`
	Url         string            `protobuf:"bytes,2,opt,name=url,proto3" json:"url,omitempty"`
	Metadata    map[string]string `protobuf:"bytes,3,rep,name=metadata,proto3" json:"metadata,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *ConversionRequest) Reset()         { *m = ConversionRequest{} }
func (m *ConversionRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*ConversionRequest) ProtoMessage()    {}

type ConversionResponse struct {
	MarkdownContent string            `protobuf:"bytes,1,opt,name=markdown_content,json=markdownContent,proto3" json:"markdown_content,omitempty"`
	ExtractedLinks  []string          `protobuf:"bytes,2,rep,name=extracted_links,json=extractedLinks,proto3" json:"extracted_links,omitempty"`
	Metadata        map[string]string `protobuf:"bytes,3,rep,name=metadata,proto3" json:"metadata,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *ConversionResponse) Reset()         { *m = ConversionResponse{} }
func (m *ConversionResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*ConversionResponse) ProtoMessage()    {}
